package ordering

import (
	"fmt"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/beadsync/pkg/model"
)

func ids(issues []*model.Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.ID
	}
	return out
}

func TestSort_PriorityVsCreated(t *testing.T) {
	x := &model.Issue{ID: "x", Priority: 1, CreatedAt: "t1"}
	y := &model.Issue{ID: "y", Priority: 2, CreatedAt: "t0"}
	in := []*model.Issue{x, y}

	if got := ids(Sort(in, Priority)); !slices.Equal(got, []string{"x", "y"}) {
		t.Errorf("priority: got %v, want [x y]", got)
	}
	if got := ids(Sort(in, CreatedAsc)); !slices.Equal(got, []string{"y", "x"}) {
		t.Errorf("created-asc: got %v, want [y x]", got)
	}
}

func TestSort_TieBreaks(t *testing.T) {
	a := &model.Issue{ID: "a", Priority: 1, CreatedAt: "2024-01-01", UpdatedAt: "2024-02-01"}
	b := &model.Issue{ID: "b", Priority: 1, CreatedAt: "2024-01-01", UpdatedAt: "2024-02-01"}
	c := &model.Issue{ID: "c", Priority: 0, CreatedAt: "2024-03-01", UpdatedAt: "2024-01-01"}
	in := []*model.Issue{b, c, a}

	tests := []struct {
		preset Preset
		want   []string
	}{
		{CreatedAsc, []string{"a", "b", "c"}},
		{CreatedDesc, []string{"c", "b", "a"}},
		{UpdatedDesc, []string{"b", "a", "c"}},
		{Priority, []string{"c", "a", "b"}},
		{Identifier, []string{"a", "b", "c"}},
		{Preset("bogus"), []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			if got := ids(Sort(in, tt.preset)); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSort_MissingTimestamps(t *testing.T) {
	dated := &model.Issue{ID: "a", CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z"}
	undated := &model.Issue{ID: "b"}
	in := []*model.Issue{dated, undated}

	if got := ids(Sort(in, CreatedAsc)); got[0] != "b" {
		t.Errorf("missing created_at should sort first ascending, got %v", got)
	}
	if got := ids(Sort(in, CreatedDesc)); got[1] != "b" {
		t.Errorf("missing created_at should sort last descending, got %v", got)
	}
	if got := ids(Sort(in, UpdatedDesc)); got[1] != "b" {
		t.Errorf("missing updated_at should sort last descending, got %v", got)
	}
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	in := []*model.Issue{{ID: "b"}, {ID: "a"}}
	_ = Sort(in, Identifier)
	if in[0].ID != "b" {
		t.Error("Sort mutated its input")
	}
}

func TestParsePreset(t *testing.T) {
	for _, p := range Presets() {
		got, ok := ParsePreset(" " + string(p) + " ")
		if !ok || got != p {
			t.Errorf("ParsePreset(%q) = %q, %v", p, got, ok)
		}
	}
	if got, ok := ParsePreset(""); ok || got != CreatedAsc {
		t.Errorf("empty preset should fall back, got %q %v", got, ok)
	}
	if got := PresetOrDefault("nope"); got != CreatedAsc {
		t.Errorf("unknown preset should fall back, got %q", got)
	}
}

func genIssues(t *rapid.T) []*model.Issue {
	n := rapid.IntRange(0, 30).Draw(t, "n")
	stamps := rapid.SliceOfN(rapid.SampledFrom([]string{"", "2024-01-01", "2024-01-02", "2024-06-30"}), n, n).Draw(t, "stamps")
	out := make([]*model.Issue, n)
	for i := 0; i < n; i++ {
		out[i] = &model.Issue{
			ID:        fmt.Sprintf("bd-%03d", i),
			Priority:  rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("prio%d", i)),
			CreatedAt: stamps[i],
			UpdatedAt: rapid.SampledFrom([]string{"", "2024-02-01", "2024-03-01"}).Draw(t, fmt.Sprintf("upd%d", i)),
		}
	}
	perm := rapid.Permutation(out).Draw(t, "perm")
	return perm
}

func TestSort_TotalOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		issues := genIssues(t)
		preset := rapid.SampledFrom(Presets()).Draw(t, "preset")

		sorted := Sort(issues, preset)
		for i := 1; i < len(sorted); i++ {
			if Compare(sorted[i-1], sorted[i], preset) >= 0 {
				t.Fatalf("not strictly ordered at %d: %s vs %s", i, sorted[i-1].ID, sorted[i].ID)
			}
		}

		again := Sort(sorted, preset)
		if !slices.Equal(ids(again), ids(sorted)) {
			t.Fatalf("sort is not idempotent")
		}

		shuffled := rapid.Permutation(issues).Draw(t, "shuffled")
		if !slices.Equal(ids(Sort(shuffled, preset)), ids(sorted)) {
			t.Fatalf("sort depends on input order")
		}
	})
}
