package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/vanderheijden86/beadsync/pkg/board"
	"github.com/vanderheijden86/beadsync/pkg/model"
	"github.com/vanderheijden86/beadsync/pkg/reconcile"
)

// AssertIssueCount verifies the expected number of issues.
func AssertIssueCount(t *testing.T, issues []model.Issue, expected int) {
	t.Helper()
	if len(issues) != expected {
		t.Errorf("expected %d issues, got %d", expected, len(issues))
	}
}

// AssertNoDuplicateIDs verifies all issue IDs are unique.
func AssertNoDuplicateIDs(t *testing.T, issues []model.Issue) {
	t.Helper()
	seen := make(map[string]bool)
	for _, issue := range issues {
		if seen[issue.ID] {
			t.Errorf("duplicate issue ID: %s", issue.ID)
		}
		seen[issue.ID] = true
	}
}

// AssertAllValid verifies all issues pass validation.
func AssertAllValid(t *testing.T, issues []model.Issue) {
	t.Helper()
	for i, issue := range issues {
		if err := issue.Validate(); err != nil {
			t.Errorf("issue %d (%s) invalid: %v", i, issue.ID, err)
		}
	}
}

// AssertColumnIDs verifies a snapshot column holds exactly ids, in order.
func AssertColumnIDs(t *testing.T, snap *reconcile.Snapshot, column string, ids ...string) {
	t.Helper()
	if _, ok := snap.Column(column); !ok {
		t.Errorf("column %q missing from snapshot", column)
		return
	}
	got := snap.IDs(column)
	if len(got) == 0 && len(ids) == 0 {
		return
	}
	if !slices.Equal(got, ids) {
		t.Errorf("column %q = %v, want %v", column, got, ids)
	}
}

// AssertColumnKeys verifies the snapshot's column order.
func AssertColumnKeys(t *testing.T, snap *reconcile.Snapshot, keys ...string) {
	t.Helper()
	got := make([]string, len(snap.Columns))
	for i, c := range snap.Columns {
		got[i] = c.Key
	}
	if !slices.Equal(got, keys) {
		t.Errorf("columns = %v, want %v", got, keys)
	}
}

// AssertCardIcon verifies the icon token of a card.
func AssertCardIcon(t *testing.T, snap *reconcile.Snapshot, id string, want board.Icon) {
	t.Helper()
	card := snap.Card(id)
	if card == nil {
		t.Errorf("card %s missing from snapshot", id)
		return
	}
	if card.Icon != want {
		t.Errorf("card %s icon = %s, want %s", id, card.Icon, want)
	}
}

// AssertSnapshotHolds verifies every issue appears exactly once in the
// snapshot and nothing else does.
func AssertSnapshotHolds(t *testing.T, snap *reconcile.Snapshot, issues []model.Issue) {
	t.Helper()
	want := make(map[string]bool, len(issues))
	for _, issue := range issues {
		want[issue.ID] = true
	}
	seen := make(map[string]bool, len(want))
	for _, col := range snap.Columns {
		for _, card := range col.Cards {
			id := card.Issue.ID
			if seen[id] {
				t.Errorf("card %s appears twice", id)
			}
			seen[id] = true
			if !want[id] {
				t.Errorf("unexpected card %s in column %s", id, col.Key)
			}
		}
	}
	for id := range want {
		if !seen[id] {
			t.Errorf("issue %s missing from snapshot", id)
		}
	}
	if snap.Total != len(want) {
		t.Errorf("snapshot total = %d, want %d", snap.Total, len(want))
	}
}

// TempBeadsDir creates a temporary project with an empty .beads directory
// and returns the .beads path.
func TempBeadsDir(t *testing.T) string {
	t.Helper()
	beadsDir := filepath.Join(t.TempDir(), ".beads")
	if err := os.MkdirAll(beadsDir, 0755); err != nil {
		t.Fatalf("failed to create .beads dir: %v", err)
	}
	return beadsDir
}

// WriteIssuesFile writes issues as JSONL to path, creating parent directories.
func WriteIssuesFile(t *testing.T, path string, issues []model.Issue) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(ToJSONL(issues)), 0644); err != nil {
		t.Fatalf("failed to write issues file: %v", err)
	}
}

// FindIssue returns the issue with the given ID, or nil if not found.
func FindIssue(issues []model.Issue, id string) *model.Issue {
	for i := range issues {
		if issues[i].ID == id {
			return &issues[i]
		}
	}
	return nil
}

// GetIDs returns a slice of all issue IDs.
func GetIDs(issues []model.Issue) []string {
	ids := make([]string, len(issues))
	for i, issue := range issues {
		ids[i] = issue.ID
	}
	return ids
}
