package testutil

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/beadsync/pkg/loader"
	"github.com/vanderheijden86/beadsync/pkg/model"
)

func TestIssues(t *testing.T) {
	issues := NewDefault().Issues(5)

	AssertIssueCount(t, issues, 5)
	AssertNoDuplicateIDs(t, issues)
	AssertAllValid(t, issues)
	if issues[0].ID != "TEST-0" || issues[4].ID != "TEST-4" {
		t.Errorf("ids = %v", GetIDs(issues))
	}
	for i := 1; i < len(issues); i++ {
		if issues[i].CreatedAt <= issues[i-1].CreatedAt {
			t.Errorf("created_at not increasing at %d: %s <= %s", i, issues[i].CreatedAt, issues[i-1].CreatedAt)
		}
	}
	for _, issue := range issues {
		if issue.Status != model.StatusOpen || issue.IssueType != model.TypeTask {
			t.Errorf("default config produced %s/%s", issue.Status, issue.IssueType)
		}
	}
}

func TestDeterminism(t *testing.T) {
	a := New(BoardConfig()).Issues(20)
	b := New(BoardConfig()).Issues(20)
	for i := range a {
		if !a[i].Equal(&b[i]) {
			t.Fatalf("issue %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestBoardConfigSpreadsStatuses(t *testing.T) {
	issues := New(BoardConfig()).Issues(200)
	statuses := make(map[model.Status]bool)
	for _, issue := range issues {
		statuses[issue.Status] = true
		if len(issue.Labels) == 0 {
			t.Errorf("issue %s has no labels", issue.ID)
		}
	}
	if len(statuses) != 4 {
		t.Errorf("statuses = %v, want all four columns", statuses)
	}
}

func TestRevise(t *testing.T) {
	gen := NewDefault()
	orig := gen.Issues(1)[0]
	next := gen.Revise(orig, time.Minute)

	if next.UpdatedAt <= orig.UpdatedAt {
		t.Errorf("revision not newer: %s <= %s", next.UpdatedAt, orig.UpdatedAt)
	}
	if next.ID != orig.ID || next.Title == orig.Title {
		t.Errorf("revision = %+v", next)
	}
	if orig.Title != "Issue 0" {
		t.Error("Revise modified its input")
	}
}

func TestShuffle(t *testing.T) {
	gen := NewDefault()
	issues := gen.Issues(10)
	before := GetIDs(issues)
	shuffled := gen.Shuffle(issues)

	if !slices.Equal(GetIDs(issues), before) {
		t.Error("Shuffle modified its input")
	}
	got := GetIDs(shuffled)
	slices.Sort(got)
	want := slices.Clone(before)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("shuffle lost issues: %v", got)
	}
}

func TestToJSONLLoads(t *testing.T) {
	issues := New(BoardConfig()).Issues(8)
	jsonl := ToJSONL(issues)
	if n := strings.Count(jsonl, "\n"); n != 8 {
		t.Fatalf("lines = %d, want 8", n)
	}

	path := filepath.Join(TempBeadsDir(t), "issues.jsonl")
	WriteIssuesFile(t, path, issues)
	loaded, err := loader.LoadIssuesFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	AssertIssueCount(t, loaded, len(issues))
	for _, want := range issues {
		got := FindIssue(loaded, want.ID)
		if got == nil || !got.Equal(&want) {
			t.Errorf("issue %s did not survive the file: %+v", want.ID, got)
		}
	}
}

func TestSingle(t *testing.T) {
	issues := Single()
	AssertIssueCount(t, issues, 1)
	AssertAllValid(t, issues)
}
