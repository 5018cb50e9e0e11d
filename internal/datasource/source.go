// Package datasource discovers the project's issue stores and loads a full
// issue set from the freshest valid one. A project may hold both a SQLite
// database (beads.db) and JSONL exports; either can be ahead of the other.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/beadsync/pkg/debug"
)

// SourceType identifies the kind of store.
type SourceType string

const (
	// SourceTypeSQLite is a SQLite database (beads.db)
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeJSONL is a JSONL export in the project directory
	SourceTypeJSONL SourceType = "jsonl"
)

// Priority breaks ties between sources with the same modification time.
const (
	PrioritySQLite = 100
	PriorityJSONL  = 50
)

// SQLiteFileName is the database name looked up in the project directory.
const SQLiteFileName = "beads.db"

// DataSource is one candidate store.
type DataSource struct {
	Type            SourceType `json:"type"`
	Path            string     `json:"path"`
	Priority        int        `json:"priority"`
	ModTime         time.Time  `json:"mod_time"`
	Size            int64      `json:"size"`
	Valid           bool       `json:"valid"`
	ValidationError string     `json:"validation_error,omitempty"`
	IssueCount      int        `json:"issue_count"`
}

func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = "invalid: " + s.ValidationError
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, issues=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.IssueCount, status)
}

// DiscoveryOptions configures DiscoverSources.
type DiscoveryOptions struct {
	// Validate opens each source and counts its issues.
	Validate bool
	// IncludeInvalid keeps sources that failed validation.
	IncludeInvalid bool
}

// DiscoverSources lists the stores in beadsDir, freshest first. Sources with
// equal modification times are ordered by priority.
func DiscoverSources(beadsDir string, opts DiscoveryOptions) ([]DataSource, error) {
	entries, err := os.ReadDir(beadsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read beads directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()

		var typ SourceType
		var priority int
		switch {
		case name == SQLiteFileName:
			typ, priority = SourceTypeSQLite, PrioritySQLite
		case isJSONLCandidate(name):
			typ, priority = SourceTypeJSONL, PriorityJSONL
		default:
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}
		sources = append(sources, DataSource{
			Type:     typ,
			Path:     filepath.Join(beadsDir, name),
			Priority: priority,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		debug.Log("datasource: found %s %s (mod=%s)", typ, name, info.ModTime().Format(time.RFC3339))
	}

	if opts.Validate {
		kept := sources[:0]
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil {
				debug.Log("datasource: %s invalid: %v", sources[i].Path, err)
			}
			if sources[i].Valid || opts.IncludeInvalid {
				kept = append(kept, sources[i])
			}
		}
		sources = kept
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	return sources, nil
}

func isJSONLCandidate(name string) bool {
	if !strings.HasSuffix(name, ".jsonl") {
		return false
	}
	return !strings.Contains(name, ".backup") &&
		!strings.Contains(name, ".orig") &&
		!strings.Contains(name, ".merge") &&
		name != "deletions.jsonl" &&
		!strings.HasPrefix(name, "beads.left") &&
		!strings.HasPrefix(name, "beads.right")
}
