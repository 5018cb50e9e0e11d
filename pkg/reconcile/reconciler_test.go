package reconcile

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/beadsync/pkg/board"
	"github.com/vanderheijden86/beadsync/pkg/model"
	"github.com/vanderheijden86/beadsync/pkg/ordering"
)

func newTestReconciler() *Reconciler {
	return New(model.DefaultBoardConfig(), ordering.CreatedAsc)
}

func mustIngest(t *testing.T, r *Reconciler, u Update) Result {
	t.Helper()
	res, err := r.Ingest(u)
	if err != nil {
		t.Fatalf("Ingest(%s) failed: %v", u.Kind, err)
	}
	return res
}

func TestReconciler_StaleUpdateIsDropped(t *testing.T) {
	r := newTestReconciler()
	mustIngest(t, r, FullUpdate([]model.Issue{
		{ID: "a", Status: "open", UpdatedAt: "2024-01-01T00:00:00Z"},
	}))
	mustIngest(t, r, IncrementalUpdate([]model.Issue{
		{ID: "a", Status: "closed", UpdatedAt: "2024-01-02T00:00:00Z"},
	}))
	res := mustIngest(t, r, IncrementalUpdate([]model.Issue{
		{ID: "a", Status: "open", UpdatedAt: "2024-01-01T12:00:00Z"},
	}))
	if res.Stale != 1 || res.Changed() {
		t.Fatalf("expected one stale, no change; got %+v", res)
	}

	snap := r.Snapshot()
	if got := snap.ColumnOf("a"); got != "closed" {
		t.Fatalf("issue a should be in closed column, got %q", got)
	}
}

func TestReconciler_TieAppliesIncoming(t *testing.T) {
	r := newTestReconciler()
	mustIngest(t, r, FullUpdate([]model.Issue{{ID: "a", Title: "old", UpdatedAt: "t1"}}))
	res := mustIngest(t, r, IncrementalUpdate([]model.Issue{{ID: "a", Title: "new", UpdatedAt: "t1"}}))
	if res.Applied != 1 {
		t.Fatalf("tie should prefer incoming, got %+v", res)
	}
	if r.Get("a").Title != "new" {
		t.Errorf("title = %q, want new", r.Get("a").Title)
	}

	res = mustIngest(t, r, IncrementalUpdate([]model.Issue{{ID: "a", Title: "new", UpdatedAt: "t1"}}))
	if res.Unchanged != 1 || res.Changed() {
		t.Fatalf("re-delivery should be a no-op, got %+v", res)
	}
}

func TestReconciler_FullReplaceRemovesMissing(t *testing.T) {
	r := newTestReconciler()
	mustIngest(t, r, FullUpdate([]model.Issue{{ID: "a"}, {ID: "b"}, {ID: "c"}}))
	res := mustIngest(t, r, FullUpdate([]model.Issue{{ID: "a"}, {ID: "c"}}))
	if res.Removed != 1 || res.Unchanged != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !slices.Equal(r.IDs(), []string{"a", "c"}) {
		t.Errorf("IDs = %v", r.IDs())
	}
}

func TestReconciler_IncrementalNeverImplicitlyDeletes(t *testing.T) {
	r := newTestReconciler()
	mustIngest(t, r, FullUpdate([]model.Issue{{ID: "a"}, {ID: "b"}}))
	res := mustIngest(t, r, IncrementalUpdate([]model.Issue{{ID: "c"}}, "b", "zz"))
	if res.Applied != 1 || res.Removed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !slices.Equal(r.IDs(), []string{"a", "c"}) {
		t.Errorf("IDs = %v", r.IDs())
	}
}

func TestReconciler_RemovedIssueNotResurrectedByLateDelivery(t *testing.T) {
	r := newTestReconciler()
	mustIngest(t, r, IncrementalUpdate([]model.Issue{{ID: "a", UpdatedAt: "2024-01-02"}}))
	mustIngest(t, r, IncrementalUpdate(nil, "a"))

	res := mustIngest(t, r, IncrementalUpdate([]model.Issue{{ID: "a", UpdatedAt: "2024-01-01"}}))
	if res.Stale != 1 || r.Len() != 0 {
		t.Fatalf("late delivery should be stale, got %+v len=%d", res, r.Len())
	}

	res = mustIngest(t, r, IncrementalUpdate([]model.Issue{{ID: "a", UpdatedAt: "2024-01-03"}}))
	if res.Applied != 1 || r.Len() != 1 {
		t.Fatalf("newer record should restore the issue, got %+v", res)
	}
}

func TestReconciler_ValidationIsPerRecord(t *testing.T) {
	r := newTestReconciler()
	res, err := r.Ingest(IncrementalUpdate([]model.Issue{
		{ID: "a"},
		{Title: "no id"},
		{ID: "b"},
	}))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !IsValidation(err) || !errors.Is(err, model.ErrMissingID) {
		t.Fatalf("unexpected error type: %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Index != 1 {
		t.Fatalf("expected ValidationError at index 1, got %v", err)
	}
	if res.Applied != 2 || res.Rejected != 1 {
		t.Fatalf("valid records should still apply, got %+v", res)
	}

	// A rejected record in a full load does not remove anything either.
	res, err = r.Ingest(FullUpdate([]model.Issue{{ID: "a"}, {ID: ""}, {ID: "b"}}))
	if err == nil || res.Removed != 0 {
		t.Fatalf("got %+v, %v", res, err)
	}
}

func TestReconciler_ReferentialStability(t *testing.T) {
	load := []model.Issue{
		{ID: "a", Status: "open", Labels: []string{"x"}, Custom: map[string]any{"k": "v"}},
		{ID: "b", Status: "closed"},
		{ID: "c", Status: "review"},
	}
	r := newTestReconciler()
	mustIngest(t, r, FullUpdate(load))
	first := r.Snapshot()

	reload := make([]model.Issue, len(load))
	for i := range load {
		reload[i] = load[i].Clone()
	}
	mustIngest(t, r, FullUpdate(reload))
	second := r.Snapshot()

	if first == second {
		t.Fatal("each snapshot must be a fresh object")
	}
	for _, id := range []string{"a", "b", "c"} {
		if first.Card(id) != second.Card(id) {
			t.Errorf("card %s changed identity on identical reload", id)
		}
		if first.Card(id).Issue != second.Card(id).Issue {
			t.Errorf("issue %s changed identity on identical reload", id)
		}
	}

	changed := reload[0].Clone()
	changed.Title = "renamed"
	mustIngest(t, r, IncrementalUpdate([]model.Issue{changed}))
	third := r.Snapshot()
	if third.Card("a") == second.Card("a") {
		t.Error("changed issue must get a new card")
	}
	if third.Card("b") != second.Card("b") {
		t.Error("untouched issue must keep its card")
	}
}

func TestReconciler_SnapshotGrouping(t *testing.T) {
	r := newTestReconciler()
	mustIngest(t, r, FullUpdate([]model.Issue{
		{ID: "x", Status: "open", Priority: 1, CreatedAt: "t1"},
		{ID: "y", Status: "open", Priority: 2, CreatedAt: "t0"},
		{ID: "z", Status: "review", CreatedAt: "t2"},
		{ID: "w", Status: "closed", IssueType: model.TypeTask},
	}))

	snap := r.Snapshot()
	var keys []string
	for _, c := range snap.Columns {
		keys = append(keys, c.Key)
	}
	want := []string{"open", "in_progress", "blocked", "closed", board.UnmappedColumn}
	if !slices.Equal(keys, want) {
		t.Fatalf("columns = %v, want %v", keys, want)
	}
	if got := snap.IDs("open"); !slices.Equal(got, []string{"y", "x"}) {
		t.Errorf("created-asc open column = %v", got)
	}
	if got := snap.IDs(board.UnmappedColumn); !slices.Equal(got, []string{"z"}) {
		t.Errorf("unmapped column = %v", got)
	}
	if snap.Card("w").Icon != board.IconChecked {
		t.Errorf("closed task icon = %q", snap.Card("w").Icon)
	}
	if snap.Total != 4 {
		t.Errorf("total = %d", snap.Total)
	}

	r.SetPreset(ordering.Priority)
	if got := r.Snapshot().IDs("open"); !slices.Equal(got, []string{"x", "y"}) {
		t.Errorf("priority open column = %v", got)
	}

	r.SetPreset("nonsense")
	if r.Preset() != ordering.CreatedAsc {
		t.Errorf("unknown preset should fall back, got %q", r.Preset())
	}
}

func TestReconciler_NoUnmappedColumnWhenEmpty(t *testing.T) {
	r := newTestReconciler()
	mustIngest(t, r, FullUpdate([]model.Issue{{ID: "a", Status: "open"}}))
	if _, ok := r.Snapshot().Column(board.UnmappedColumn); ok {
		t.Error("unmapped column should be omitted when empty")
	}
}

func TestReconciler_ConfiguredUnmappedKeyShownOnce(t *testing.T) {
	cfg := model.DefaultBoardConfig()
	cfg.Statuses = append(cfg.Statuses, model.StatusDef{Key: board.UnmappedColumn, Label: "Mine"})
	if err := cfg.Validate(); err == nil {
		t.Fatal("config claiming the unmapped key should not validate")
	}

	r := New(cfg, ordering.CreatedAsc)
	mustIngest(t, r, FullUpdate([]model.Issue{
		{ID: "a", Status: board.UnmappedColumn, CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "b", Status: "review", CreatedAt: "2024-01-02T00:00:00Z"},
	}))
	snap := r.Snapshot()

	cards, unmappedColumns := 0, 0
	for _, c := range snap.Columns {
		cards += len(c.Cards)
		if c.Key == board.UnmappedColumn {
			unmappedColumns++
		}
	}
	if cards != snap.Total {
		t.Errorf("cards on board = %d, Total = %d", cards, snap.Total)
	}
	if unmappedColumns != 1 {
		t.Errorf("unmapped column emitted %d times", unmappedColumns)
	}
	if got := snap.IDs(board.UnmappedColumn); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("unmapped column = %v", got)
	}
}

func TestReconciler_SetBoardConfigRebuildsCards(t *testing.T) {
	r := newTestReconciler()
	mustIngest(t, r, FullUpdate([]model.Issue{{ID: "a", Status: "review", IssueType: model.TypeTask}}))
	before := r.Snapshot()
	if before.ColumnOf("a") != board.UnmappedColumn {
		t.Fatalf("expected unmapped, got %q", before.ColumnOf("a"))
	}

	cfg := model.DefaultBoardConfig()
	cfg.Statuses = append(cfg.Statuses, model.StatusDef{Key: "review", Label: "Review", Terminal: true})
	r.SetBoardConfig(cfg)

	after := r.Snapshot()
	if after.ColumnOf("a") != "review" {
		t.Fatalf("expected review column, got %q", after.ColumnOf("a"))
	}
	if after.Card("a").Icon != board.IconChecked {
		t.Errorf("review is terminal in the new config, icon = %q", after.Card("a").Icon)
	}
}

func TestColumnStats(t *testing.T) {
	col := Column{Cards: []*Card{
		{Issue: &model.Issue{ID: "a", Priority: 0, CreatedAt: "2024-02-01"}},
		{Issue: &model.Issue{ID: "b", Priority: 1, CreatedAt: "2024-01-01"}},
		{Issue: &model.Issue{ID: "c", Priority: 3}},
	}}
	s := col.Stats()
	if s.Total != 3 || s.P0Count != 1 || s.P1Count != 1 || s.Oldest != "2024-01-01" {
		t.Errorf("unexpected stats %+v", s)
	}
}

// Each id receives versions with distinct, increasing updated_at values; any
// delivery order must converge to the newest version of each.
func TestReconciler_OutOfOrderConvergence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nIDs := rapid.IntRange(1, 5).Draw(t, "ids")
		var updates []model.Issue
		latest := make(map[string]model.Issue)
		for i := 0; i < nIDs; i++ {
			id := fmt.Sprintf("bd-%d", i)
			versions := rapid.IntRange(1, 4).Draw(t, "versions")
			for v := 0; v < versions; v++ {
				issue := model.Issue{
					ID:        id,
					Status:    rapid.SampledFrom([]model.Status{"open", "in_progress", "closed", "review"}).Draw(t, "status"),
					Priority:  rapid.IntRange(0, 4).Draw(t, "priority"),
					UpdatedAt: fmt.Sprintf("2024-01-%02dT00:00:00Z", v+1),
				}
				updates = append(updates, issue)
				latest[id] = issue
			}
		}

		order := rapid.Permutation(updates).Draw(t, "order")
		r := newTestReconciler()
		for _, u := range order {
			if _, err := r.Ingest(IncrementalUpdate([]model.Issue{u})); err != nil {
				t.Fatalf("ingest: %v", err)
			}
		}

		if r.Len() != len(latest) {
			t.Fatalf("len = %d, want %d", r.Len(), len(latest))
		}
		for id, want := range latest {
			got := r.Get(id)
			if !got.Equal(&want) {
				t.Fatalf("%s converged to %+v, want %+v", id, *got, want)
			}
		}
	})
}

func TestReconciler_IdempotentReloadProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		issues := make([]model.Issue, n)
		for i := range issues {
			issues[i] = model.Issue{
				ID:        fmt.Sprintf("bd-%d", i),
				Status:    rapid.SampledFrom([]model.Status{"open", "closed", "odd"}).Draw(t, "status"),
				CreatedAt: rapid.SampledFrom([]string{"", "2024-01-01", "2024-02-01"}).Draw(t, "created"),
			}
		}
		r := newTestReconciler()
		if _, err := r.Ingest(FullUpdate(issues)); err != nil {
			t.Fatal(err)
		}
		first := r.Snapshot()
		res, err := r.Ingest(FullUpdate(rapid.Permutation(issues).Draw(t, "perm")))
		if err != nil {
			t.Fatal(err)
		}
		if res.Changed() {
			t.Fatalf("identical reload changed the table: %+v", res)
		}
		second := r.Snapshot()
		for i := range issues {
			if first.Card(issues[i].ID) != second.Card(issues[i].ID) {
				t.Fatalf("card %s lost identity", issues[i].ID)
			}
		}
	})
}
