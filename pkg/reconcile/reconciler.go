// Package reconcile merges full loads and incremental notifications into a
// canonical issue table and builds the grouped, sorted presentation snapshot
// handed to the rendering layer.
//
// A Reconciler is owned by a single event loop and is not safe for concurrent
// use. Snapshots it returns are immutable and may be shared freely.
package reconcile

import (
	"sort"

	"github.com/vanderheijden86/beadsync/pkg/board"
	"github.com/vanderheijden86/beadsync/pkg/metrics"
	"github.com/vanderheijden86/beadsync/pkg/model"
	"github.com/vanderheijden86/beadsync/pkg/ordering"
)

type entry struct {
	issue *model.Issue
	fp    fingerprint
	card  *Card // built lazily, dropped when the record or config changes
}

// Reconciler holds the canonical issue table for one session.
type Reconciler struct {
	cfg    model.BoardConfig
	cat    board.Categorizer
	preset ordering.Preset

	table map[string]*entry
	// removedAt remembers the updated_at of records deleted by an incremental
	// update, so late deliveries of older versions do not resurrect them.
	removedAt map[string]string

	version uint64
}

// New creates an empty reconciler. An invalid preset falls back to the
// default order.
func New(cfg model.BoardConfig, preset ordering.Preset) *Reconciler {
	if !preset.Valid() {
		preset = ordering.Default
	}
	cfg = cfg.Clone()
	return &Reconciler{
		cfg:       cfg,
		cat:       board.NewCategorizer(cfg),
		preset:    preset,
		table:     make(map[string]*entry),
		removedAt: make(map[string]string),
	}
}

// Preset returns the active sort preset.
func (r *Reconciler) Preset() ordering.Preset {
	return r.preset
}

// SetPreset changes the sort order used by the next Snapshot. Unknown presets
// fall back to the default.
func (r *Reconciler) SetPreset(p ordering.Preset) {
	if !p.Valid() {
		p = ordering.Default
	}
	r.preset = p
}

// BoardConfig returns a copy of the active board configuration.
func (r *Reconciler) BoardConfig() model.BoardConfig {
	return r.cfg.Clone()
}

// SetBoardConfig swaps the board configuration. Cards are rebuilt because
// icons and labels depend on it.
func (r *Reconciler) SetBoardConfig(cfg model.BoardConfig) {
	r.cfg = cfg.Clone()
	r.cat = board.NewCategorizer(r.cfg)
	for _, e := range r.table {
		e.card = nil
	}
}

// Len returns the number of issues in the canonical table.
func (r *Reconciler) Len() int {
	return len(r.table)
}

// Get returns the held record for id, or nil.
func (r *Reconciler) Get(id string) *model.Issue {
	if e, ok := r.table[id]; ok {
		return e.issue
	}
	return nil
}

// IDs returns the held ids in ascending order.
func (r *Reconciler) IDs() []string {
	ids := make([]string, 0, len(r.table))
	for id := range r.table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Ingest applies an update. Records without an id are rejected individually
// and reported through a *BatchError; every other record of the batch is
// still applied.
func (r *Reconciler) Ingest(u Update) (Result, error) {
	defer metrics.Timer(metrics.Reconcile)()

	var (
		res      Result
		rejected []*ValidationError
	)
	switch u.Kind {
	case Full:
		res, rejected = r.replace(u.Issues)
	default:
		res, rejected = r.merge(u.Issues, u.Removed)
	}

	metrics.StaleUpdates.Add(int64(res.Stale))
	metrics.RejectedRecords.Add(int64(res.Rejected))

	if len(rejected) > 0 {
		return res, &BatchError{Errors: rejected}
	}
	return res, nil
}

type outcome int

const (
	outcomeApplied outcome = iota
	outcomeUnchanged
	outcomeStale
)

// decide applies the last-writer-wins rule: an incoming record loses only if
// its updated_at is strictly earlier than the held one. On a tie the incoming
// record wins, which is a no-op when it is structurally identical.
func decide(held *entry, incoming *model.Issue, fp fingerprint) outcome {
	if held == nil {
		return outcomeApplied
	}
	if incoming.UpdatedAt < held.issue.UpdatedAt {
		return outcomeStale
	}
	if sameRecord(held, incoming, fp) {
		return outcomeUnchanged
	}
	return outcomeApplied
}

func (r *Reconciler) replace(issues []model.Issue) (Result, []*ValidationError) {
	var (
		res      Result
		rejected []*ValidationError
	)
	next := make(map[string]*entry, len(issues))

	for idx := range issues {
		rec := &issues[idx]
		if err := rec.Validate(); err != nil {
			res.Rejected++
			rejected = append(rejected, &ValidationError{Index: idx, Err: err})
			continue
		}

		// A repeated id within one batch is judged against the earlier copy.
		held, ok := next[rec.ID]
		if !ok {
			held = r.table[rec.ID]
		}

		fp := fingerprintOf(rec)
		switch decide(held, rec, fp) {
		case outcomeStale:
			res.Stale++
			next[rec.ID] = held
		case outcomeUnchanged:
			res.Unchanged++
			next[rec.ID] = held
		default:
			res.Applied++
			next[rec.ID] = newEntry(rec, fp)
		}
		delete(r.removedAt, rec.ID)
	}

	for id := range r.table {
		if _, ok := next[id]; !ok {
			res.Removed++
		}
	}
	r.table = next
	return res, rejected
}

func (r *Reconciler) merge(upserts []model.Issue, removed []string) (Result, []*ValidationError) {
	var (
		res      Result
		rejected []*ValidationError
	)

	for idx := range upserts {
		rec := &upserts[idx]
		if err := rec.Validate(); err != nil {
			res.Rejected++
			rejected = append(rejected, &ValidationError{Index: idx, Err: err})
			continue
		}

		held := r.table[rec.ID]
		if held == nil {
			if gone, ok := r.removedAt[rec.ID]; ok && rec.UpdatedAt <= gone {
				res.Stale++
				continue
			}
		}

		fp := fingerprintOf(rec)
		switch decide(held, rec, fp) {
		case outcomeStale:
			res.Stale++
		case outcomeUnchanged:
			res.Unchanged++
		default:
			res.Applied++
			r.table[rec.ID] = newEntry(rec, fp)
			delete(r.removedAt, rec.ID)
		}
	}

	for _, id := range removed {
		e, ok := r.table[id]
		if !ok {
			continue
		}
		r.removedAt[id] = e.issue.UpdatedAt
		delete(r.table, id)
		res.Removed++
	}

	return res, rejected
}

func newEntry(rec *model.Issue, fp fingerprint) *entry {
	owned := rec.Clone()
	return &entry{issue: &owned, fp: fp}
}

func (r *Reconciler) cardFor(e *entry) *Card {
	if e.card == nil {
		e.card = &Card{
			Issue:         e.issue,
			Column:        r.cat.Column(e.issue),
			Icon:          r.cat.Icon(e.issue),
			Category:      r.cat.Category(e.issue.IssueType),
			PriorityLabel: r.cat.PriorityLabel(e.issue.Priority),
		}
	}
	return e.card
}
