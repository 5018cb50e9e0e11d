// Package loader reads issues from the project's JSONL export.
package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/beadsync/pkg/debug"
	"github.com/vanderheijden86/beadsync/pkg/metrics"
	"github.com/vanderheijden86/beadsync/pkg/model"
)

// BeadsDirEnvVar overrides the project directory lookup.
const BeadsDirEnvVar = "BEADS_DIR"

// PreferredJSONLNames is the lookup order for the export file.
var PreferredJSONLNames = []string{"issues.jsonl", "beads.jsonl", "beads.base.jsonl"}

// ErrNoJSONL is returned when a directory holds no usable export.
var ErrNoJSONL = errors.New("no beads JSONL file found")

// GetBeadsDir returns the project directory: BEADS_DIR when set, otherwise
// .beads under repoPath (or the working directory when repoPath is empty).
func GetBeadsDir(repoPath string) (string, error) {
	if envDir := os.Getenv(BeadsDirEnvVar); envDir != "" {
		return envDir, nil
	}
	if repoPath == "" {
		var err error
		repoPath, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
	}
	return filepath.Join(repoPath, ".beads"), nil
}

// FindJSONLPath locates the export file in beadsDir, skipping backups and
// merge artifacts. Non-empty preferred names win over other candidates.
func FindJSONLPath(beadsDir string) (string, error) {
	entries, err := os.ReadDir(beadsDir)
	if err != nil {
		return "", fmt.Errorf("failed to read beads directory: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".jsonl") || skipCandidate(name) {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoJSONL, beadsDir)
	}

	nonEmpty := func(name string) (string, bool) {
		path := filepath.Join(beadsDir, name)
		info, err := os.Stat(path)
		return path, err == nil && info.Size() > 0
	}
	for _, preferred := range PreferredJSONLNames {
		for _, name := range candidates {
			if name != preferred {
				continue
			}
			if path, ok := nonEmpty(name); ok {
				return path, nil
			}
		}
	}
	for _, name := range candidates {
		if path, ok := nonEmpty(name); ok {
			return path, nil
		}
	}
	return filepath.Join(beadsDir, candidates[0]), nil
}

func skipCandidate(name string) bool {
	switch {
	case strings.Contains(name, ".backup"),
		strings.Contains(name, ".orig"),
		strings.Contains(name, ".merge"),
		name == "deletions.jsonl":
		return true
	case strings.HasPrefix(name, "beads.left"), strings.HasPrefix(name, "beads.right"):
		debug.Log("loader: ignoring merge artifact %s", name)
		return true
	}
	return false
}

// DefaultMaxBufferSize is the longest line ParseIssues accepts (10MB).
const DefaultMaxBufferSize = 10 * 1024 * 1024

// ParseOptions configures ParseIssuesWithOptions.
type ParseOptions struct {
	// WarningHandler receives one message per skipped line. When nil,
	// warnings go to the debug log.
	WarningHandler func(string)

	// BufferSize caps the line length. Longer lines are skipped.
	BufferSize int
}

// LoadIssuesFromFile reads a JSONL export.
func LoadIssuesFromFile(path string) ([]model.Issue, error) {
	return LoadIssuesFromFileWithOptions(path, ParseOptions{})
}

// LoadIssuesFromFileWithOptions reads a JSONL export with custom options.
func LoadIssuesFromFileWithOptions(path string, opts ParseOptions) ([]model.Issue, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no beads issues found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to open issues file: %w", err)
	}
	defer file.Close()

	return ParseIssuesWithOptions(file, opts)
}

// ParseIssues parses JSONL content from r.
func ParseIssues(r io.Reader) ([]model.Issue, error) {
	return ParseIssuesWithOptions(r, ParseOptions{})
}

// ParseIssuesWithOptions parses JSONL content from r. A leading UTF-8 BOM is
// stripped; blank, malformed and over-long lines are skipped with a warning.
// Tombstoned records are dropped.
// Records are not validated here: a record without an id is passed through
// so the reconciler can reject it individually.
func ParseIssuesWithOptions(r io.Reader, opts ParseOptions) ([]model.Issue, error) {
	defer metrics.Timer(metrics.JSONParsing)()

	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	warn := opts.WarningHandler
	if warn == nil {
		warn = func(msg string) { debug.Log("loader: %s", msg) }
	}

	var issues []model.Issue
	reader := bufio.NewReaderSize(r, maxCapacity)
	for lineNum := 1; ; lineNum++ {
		line, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading issues stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var issue model.Issue
		if err := json.Unmarshal(line, &issue); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}
		issue.Status = NormalizeStatus(issue.Status)
		// Tombstones are deletions; the SQLite reader filters them the same way.
		if issue.Status.IsTombstone() {
			debug.Log("loader: skipping tombstone %s on line %d", issue.ID, lineNum)
			continue
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}

// NormalizeStatus trims and lowercases a status so hand-edited exports map
// onto the configured columns.
func NormalizeStatus(status model.Status) model.Status {
	trimmed := strings.TrimSpace(string(status))
	if trimmed == "" {
		return status
	}
	return model.Status(strings.ToLower(trimmed))
}
