// Package ordering implements the named sort presets used to order board
// columns. Every preset ends with the issue ID as a tie-break so the result is
// a strict total order for any input.
package ordering

import (
	"cmp"
	"slices"
	"strings"

	"github.com/vanderheijden86/beadsync/pkg/model"
)

// Preset names a sort order.
type Preset string

const (
	CreatedAsc  Preset = "created-asc"
	CreatedDesc Preset = "created-desc"
	UpdatedDesc Preset = "updated-desc"
	Priority    Preset = "priority"
	Identifier  Preset = "identifier"
)

// Default is used whenever a preset is absent or unknown.
const Default = CreatedAsc

// Presets returns all supported presets.
func Presets() []Preset {
	return []Preset{CreatedAsc, CreatedDesc, UpdatedDesc, Priority, Identifier}
}

// Valid reports whether p is one of the named presets.
func (p Preset) Valid() bool {
	switch p {
	case CreatedAsc, CreatedDesc, UpdatedDesc, Priority, Identifier:
		return true
	default:
		return false
	}
}

// ParsePreset resolves a user-supplied preset name.
func ParsePreset(s string) (Preset, bool) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return Default, false
	}
	return p, true
}

// PresetOrDefault is ParsePreset without the ok flag.
func PresetOrDefault(s string) Preset {
	p, _ := ParsePreset(s)
	return p
}

// Compare orders a before b (negative), after b (positive) or reports equal
// only when both carry the same ID.
func Compare(a, b *model.Issue, preset Preset) int {
	switch preset {
	case CreatedDesc:
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	case UpdatedDesc:
		if c := cmp.Compare(b.UpdatedAt, a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	case Priority:
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	case Identifier:
		return cmp.Compare(a.ID, b.ID)
	default:
		if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}
}

// Sort returns a new slice with issues ordered by preset. The input is not
// modified.
func Sort(issues []*model.Issue, preset Preset) []*model.Issue {
	out := slices.Clone(issues)
	slices.SortStableFunc(out, func(a, b *model.Issue) int {
		return Compare(a, b, preset)
	})
	return out
}
