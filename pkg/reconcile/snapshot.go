package reconcile

import (
	"slices"
	"time"

	"github.com/vanderheijden86/beadsync/pkg/board"
	"github.com/vanderheijden86/beadsync/pkg/metrics"
	"github.com/vanderheijden86/beadsync/pkg/model"
	"github.com/vanderheijden86/beadsync/pkg/ordering"
)

// Card is the presentation summary of one issue. A card is the same pointer
// across snapshots for as long as its issue and the board config are
// unchanged, so renderers can skip work by identity comparison.
type Card struct {
	Issue         *model.Issue
	Column        string
	Icon          board.Icon
	Category      string
	PriorityLabel string
}

// Column is one board lane.
type Column struct {
	Key      string
	Label    string
	Terminal bool
	Unmapped bool
	Cards    []*Card
}

// ColumnStats summarizes a column for headers.
type ColumnStats struct {
	Total   int
	P0Count int
	P1Count int
	Oldest  string // earliest created_at in the column
}

// Stats computes header statistics for the column.
func (c Column) Stats() ColumnStats {
	stats := ColumnStats{Total: len(c.Cards)}
	for _, card := range c.Cards {
		switch card.Issue.Priority {
		case 0:
			stats.P0Count++
		case 1:
			stats.P1Count++
		}
		if created := card.Issue.CreatedAt; created != "" && (stats.Oldest == "" || created < stats.Oldest) {
			stats.Oldest = created
		}
	}
	return stats
}

// Snapshot is an immutable grouped and sorted view of the canonical table.
// Consumers must not modify it.
type Snapshot struct {
	Version   uint64
	Preset    ordering.Preset
	Columns   []Column
	Total     int
	CreatedAt time.Time

	index map[string]*Card
}

// Card returns the card for id, or nil.
func (s *Snapshot) Card(id string) *Card {
	if s == nil {
		return nil
	}
	return s.index[id]
}

// Column returns the column with the given key.
func (s *Snapshot) Column(key string) (Column, bool) {
	if s == nil {
		return Column{}, false
	}
	for _, c := range s.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnOf returns the column key holding id, or "".
func (s *Snapshot) ColumnOf(id string) string {
	if c := s.Card(id); c != nil {
		return c.Column
	}
	return ""
}

// IDs returns the issue ids of a column in display order.
func (s *Snapshot) IDs(key string) []string {
	col, ok := s.Column(key)
	if !ok {
		return nil
	}
	ids := make([]string, len(col.Cards))
	for i, c := range col.Cards {
		ids[i] = c.Issue.ID
	}
	return ids
}

// IsEmpty reports whether the snapshot holds no issues.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || s.Total == 0
}

// Snapshot groups every held issue by column and orders each column with the
// active preset. Columns follow the board configuration order; the unmapped
// column is appended only when it has cards.
func (r *Reconciler) Snapshot() *Snapshot {
	defer metrics.Timer(metrics.SnapshotBuild)()

	groups := make(map[string][]*Card, len(r.cfg.Statuses)+1)
	index := make(map[string]*Card, len(r.table))
	for id, e := range r.table {
		card := r.cardFor(e)
		groups[card.Column] = append(groups[card.Column], card)
		index[id] = card
	}

	preset := r.preset
	sortCards := func(cards []*Card) []*Card {
		slices.SortStableFunc(cards, func(a, b *Card) int {
			return ordering.Compare(a.Issue, b.Issue, preset)
		})
		return cards
	}

	columns := make([]Column, 0, len(r.cfg.Statuses)+1)
	for _, def := range r.cfg.Statuses {
		columns = append(columns, Column{
			Key:      string(def.Key),
			Label:    r.cat.ColumnLabel(string(def.Key)),
			Terminal: def.Terminal,
			Cards:    sortCards(groups[string(def.Key)]),
		})
	}
	// An unvalidated config may claim the unmapped key. Its bucket was
	// already emitted as the configured column above.
	_, claimed := r.cfg.StatusDef(model.Status(board.UnmappedColumn))
	if unmapped := groups[board.UnmappedColumn]; len(unmapped) > 0 && !claimed {
		columns = append(columns, Column{
			Key:      board.UnmappedColumn,
			Label:    r.cat.ColumnLabel(board.UnmappedColumn),
			Unmapped: true,
			Cards:    sortCards(unmapped),
		})
	}

	r.version++
	return &Snapshot{
		Version:   r.version,
		Preset:    preset,
		Columns:   columns,
		Total:     len(r.table),
		CreatedAt: time.Now(),
		index:     index,
	}
}
