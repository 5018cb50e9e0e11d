package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vanderheijden86/beadsync/pkg/model"
)

// Kind distinguishes full replacements from incremental deltas.
type Kind int

const (
	// Full replaces the session's issue set; ids it omits are removed.
	Full Kind = iota
	// Incremental upserts the listed issues and removes the listed ids only.
	Incremental
)

func (k Kind) String() string {
	switch k {
	case Full:
		return "full"
	case Incremental:
		return "incremental"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Update is one unit of input to the reconciler.
type Update struct {
	Kind    Kind
	Issues  []model.Issue
	Removed []string
}

// FullUpdate builds a full replacement.
func FullUpdate(issues []model.Issue) Update {
	return Update{Kind: Full, Issues: issues}
}

// IncrementalUpdate builds a delta of upserts and removals.
func IncrementalUpdate(upserts []model.Issue, removed ...string) Update {
	return Update{Kind: Incremental, Issues: upserts, Removed: removed}
}

// Result summarizes what an Ingest call did.
type Result struct {
	Applied   int // records inserted or replaced
	Unchanged int // records structurally equal to the held one
	Stale     int // records older than the held one, dropped
	Removed   int // ids deleted from the table
	Rejected  int // malformed records
}

// Changed reports whether the canonical table was mutated.
func (r Result) Changed() bool {
	return r.Applied > 0 || r.Removed > 0
}

// Add accumulates another result.
func (r Result) Add(o Result) Result {
	return Result{
		Applied:   r.Applied + o.Applied,
		Unchanged: r.Unchanged + o.Unchanged,
		Stale:     r.Stale + o.Stale,
		Removed:   r.Removed + o.Removed,
		Rejected:  r.Rejected + o.Rejected,
	}
}

// ValidationError describes one rejected record of a batch.
type ValidationError struct {
	Index int // position in Update.Issues
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BatchError is returned by Ingest when some records were rejected. The valid
// records of the same batch were still applied.
type BatchError struct {
	Errors []*ValidationError
}

func (e *BatchError) Error() string {
	if len(e.Errors) == 1 {
		return "reconcile: " + e.Errors[0].Error()
	}
	parts := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		parts = append(parts, ve.Error())
	}
	return fmt.Sprintf("reconcile: %d records rejected: %s", len(e.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes every validation error to errors.Is / errors.As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, ve := range e.Errors {
		out[i] = ve
	}
	return out
}

// IsValidation reports whether err carries record validation failures.
func IsValidation(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}
