// Package testutil provides issue fixture generators and board assertions.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/beadsync/pkg/model"
)

// GeneratorConfig controls issue generation.
type GeneratorConfig struct {
	Seed          int64             // Random seed for determinism (0 = use current time)
	IDPrefix      string            // Prefix for issue IDs (default: "TEST")
	BaseTime      time.Time         // Base time for timestamps (default: fixed time)
	IncludeLabels bool              // Generate random labels
	StatusMix     []model.Status    // Status distribution (nil = all open)
	TypeMix       []model.IssueType // Type distribution (nil = all task)
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:      42,
		IDPrefix:  "TEST",
		BaseTime:  time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		StatusMix: []model.Status{model.StatusOpen},
		TypeMix:   []model.IssueType{model.TypeTask},
	}
}

// BoardConfig returns a generator config spreading issues over every column
// of the default board and every issue type.
func BoardConfig() GeneratorConfig {
	cfg := DefaultConfig()
	cfg.IncludeLabels = true
	cfg.StatusMix = []model.Status{model.StatusOpen, model.StatusInProgress, model.StatusBlocked, model.StatusClosed}
	cfg.TypeMix = []model.IssueType{
		model.TypeInitiative, model.TypeEpic, model.TypeStory, model.TypeTask,
		model.TypeSubTask, model.TypeBug, model.TypeChore,
	}
	return cfg
}

// Generator creates issue fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "TEST"
	}
	if len(cfg.StatusMix) == 0 {
		cfg.StatusMix = []model.Status{model.StatusOpen}
	}
	if len(cfg.TypeMix) == 0 {
		cfg.TypeMix = []model.IssueType{model.TypeTask}
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Timestamp formats the base time plus offset the way exports store it.
func (g *Generator) Timestamp(offset time.Duration) string {
	return g.cfg.BaseTime.Add(offset).UTC().Format(time.RFC3339)
}

// Issues creates n issues created an hour apart. Issue i has ID
// "<prefix>-<i>" and is last updated when it was created.
func (g *Generator) Issues(n int) []model.Issue {
	issues := make([]model.Issue, n)
	for i := range issues {
		ts := g.Timestamp(time.Duration(i) * time.Hour)
		issue := model.Issue{
			ID:        fmt.Sprintf("%s-%d", g.cfg.IDPrefix, i),
			Title:     fmt.Sprintf("Issue %d", i),
			Status:    g.pickStatus(),
			Priority:  g.rng.Intn(5), // P0-P4
			IssueType: g.pickType(),
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		if g.cfg.IncludeLabels {
			issue.Labels = g.pickLabels()
		}
		issues[i] = issue
	}
	return issues
}

// Revise returns a copy of issue edited later than its current revision: the
// title gains a suffix and UpdatedAt moves forward by step.
func (g *Generator) Revise(issue model.Issue, step time.Duration) model.Issue {
	next := issue.Clone()
	updated, err := time.Parse(time.RFC3339, issue.UpdatedAt)
	if err != nil {
		updated = g.cfg.BaseTime
	}
	next.UpdatedAt = updated.Add(step).UTC().Format(time.RFC3339)
	next.Title = issue.Title + " (edited)"
	return next
}

// Shuffle returns the issues in a random order without modifying the input.
func (g *Generator) Shuffle(issues []model.Issue) []model.Issue {
	out := append([]model.Issue(nil), issues...)
	g.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// ToJSONL converts issues to JSONL format (one JSON object per line).
func ToJSONL(issues []model.Issue) string {
	var sb strings.Builder
	for _, issue := range issues {
		data, err := json.Marshal(issue)
		if err != nil {
			continue
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (g *Generator) pickStatus() model.Status {
	return g.cfg.StatusMix[g.rng.Intn(len(g.cfg.StatusMix))]
}

func (g *Generator) pickType() model.IssueType {
	return g.cfg.TypeMix[g.rng.Intn(len(g.cfg.TypeMix))]
}

var sampleLabels = []string{"backend", "frontend", "api", "database", "ui", "auth", "performance", "security", "docs", "testing"}

func (g *Generator) pickLabels() []string {
	count := g.rng.Intn(3) + 1 // 1-3 labels
	labels := make([]string, 0, count)
	used := make(map[int]bool)
	for len(labels) < count {
		idx := g.rng.Intn(len(sampleLabels))
		if !used[idx] {
			used[idx] = true
			labels = append(labels, sampleLabels[idx])
		}
	}
	return labels
}

// Quick creates n issues with default settings.
func Quick(n int) []model.Issue {
	return NewDefault().Issues(n)
}

// Single returns one open task.
func Single() []model.Issue {
	gen := NewDefault()
	return []model.Issue{{
		ID:        fmt.Sprintf("%s-single", gen.cfg.IDPrefix),
		Title:     "Single Issue",
		Status:    model.StatusOpen,
		Priority:  1,
		IssueType: model.TypeTask,
		CreatedAt: gen.Timestamp(0),
		UpdatedAt: gen.Timestamp(0),
	}}
}
