package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/beadsync/pkg/reconcile"
	"github.com/vanderheijden86/beadsync/pkg/ui"
)

type snapshotCard struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	Type          string   `json:"issue_type,omitempty"`
	Priority      int      `json:"priority"`
	PriorityLabel string   `json:"priority_label"`
	Icon          string   `json:"icon"`
	Category      string   `json:"category"`
	Assignee      string   `json:"assignee,omitempty"`
	Labels        []string `json:"labels,omitempty"`
}

type snapshotColumn struct {
	Key      string         `json:"key"`
	Label    string         `json:"label"`
	Terminal bool           `json:"terminal,omitempty"`
	Unmapped bool           `json:"unmapped,omitempty"`
	Count    int            `json:"count"`
	Cards    []snapshotCard `json:"cards"`
}

type snapshotOutput struct {
	GeneratedAt string           `json:"generated_at"`
	Version     uint64           `json:"version"`
	Preset      string           `json:"preset"`
	Total       int              `json:"total"`
	Columns     []snapshotColumn `json:"columns"`
}

func buildSnapshotOutput(s *reconcile.Snapshot) snapshotOutput {
	out := snapshotOutput{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Columns:     []snapshotColumn{},
	}
	if s == nil {
		return out
	}
	out.Version = s.Version
	out.Preset = string(s.Preset)
	out.Total = s.Total
	for _, col := range s.Columns {
		sc := snapshotColumn{
			Key:      col.Key,
			Label:    col.Label,
			Terminal: col.Terminal,
			Unmapped: col.Unmapped,
			Count:    len(col.Cards),
			Cards:    make([]snapshotCard, 0, len(col.Cards)),
		}
		for _, card := range col.Cards {
			sc.Cards = append(sc.Cards, snapshotCard{
				ID:            card.Issue.ID,
				Title:         card.Issue.Title,
				Status:        string(card.Issue.Status),
				Type:          string(card.Issue.IssueType),
				Priority:      card.Issue.Priority,
				PriorityLabel: card.PriorityLabel,
				Icon:          string(card.Icon),
				Category:      card.Category,
				Assignee:      card.Issue.Assignee,
				Labels:        card.Issue.Labels,
			})
		}
		out.Columns = append(out.Columns, sc)
	}
	return out
}

func writeSnapshotJSON(w io.Writer, s *reconcile.Snapshot) error {
	data, err := json.MarshalIndent(buildSnapshotOutput(s), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// writeSnapshotText draws the board once. Colors are used only when w is a
// terminal.
func writeSnapshotText(w io.Writer, s *reconcile.Snapshot) error {
	width := 0
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = cols
		}
	}
	theme := ui.DefaultTheme(lipgloss.NewRenderer(w))
	_, err := fmt.Fprintln(w, ui.RenderSnapshot(s, theme, width))
	return err
}
