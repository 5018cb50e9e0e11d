// Package pulse decides when a changed field should be highlighted. It only
// answers whether to pulse; the fade itself belongs to the rendering layer.
package pulse

import "sync"

// ShouldPulse reports whether a transition from prev to next is worth a
// highlight. The first observation of a field never pulses.
func ShouldPulse[T comparable](prev, next T, first bool) bool {
	if first {
		return false
	}
	return prev != next
}

// Field identifies a tracked card field.
type Field uint16

const (
	FieldTitle Field = 1 << iota
	FieldStatus
	FieldPriority
	FieldAssignee
	FieldLabels
	FieldColumn
	FieldUpdated
)

// AllFields lists every tracked field in display order.
var AllFields = []Field{FieldTitle, FieldStatus, FieldPriority, FieldAssignee, FieldLabels, FieldColumn, FieldUpdated}

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldStatus:
		return "status"
	case FieldPriority:
		return "priority"
	case FieldAssignee:
		return "assignee"
	case FieldLabels:
		return "labels"
	case FieldColumn:
		return "column"
	case FieldUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Fields is a set of pulsing fields for one issue.
type Fields uint16

// Has reports whether f is in the set.
func (s Fields) Has(f Field) bool {
	return s&Fields(f) != 0
}

// With returns the set plus f.
func (s Fields) With(f Field) Fields {
	return s | Fields(f)
}

// Any reports whether any field pulses.
func (s Fields) Any() bool {
	return s != 0
}

// Key addresses one tracked field of one issue.
type Key struct {
	IssueID string
	Field   Field
}

// Tracker remembers the last value seen per key. Comparison is strictly
// previous-vs-current: a value returning to an earlier state still pulses.
type Tracker[T comparable] struct {
	mu   sync.Mutex
	last map[Key]T
}

// NewTracker returns an empty tracker.
func NewTracker[T comparable]() *Tracker[T] {
	return &Tracker[T]{last: make(map[Key]T)}
}

// Observe records value for key and reports whether it should pulse.
func (t *Tracker[T]) Observe(key Key, value T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, seen := t.last[key]
	t.last[key] = value
	return ShouldPulse(prev, value, !seen)
}

// ForgetIssue drops all remembered values for an issue.
func (t *Tracker[T]) ForgetIssue(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.last {
		if k.IssueID == id {
			delete(t.last, k)
		}
	}
}

// Len returns the number of tracked keys.
func (t *Tracker[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

// Reset clears all state; the next observation of every key counts as first.
func (t *Tracker[T]) Reset() {
	t.mu.Lock()
	t.last = make(map[Key]T)
	t.mu.Unlock()
}
