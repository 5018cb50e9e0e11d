package model

import (
	"fmt"
	"slices"
)

// StatusDef declares one board column.
type StatusDef struct {
	Key      Status `yaml:"key" json:"key"`
	Label    string `yaml:"label" json:"label"`
	Terminal bool   `yaml:"terminal,omitempty" json:"terminal,omitempty"`
}

// CategoryDef maps an issue type to a display label and icon token.
type CategoryDef struct {
	Type  IssueType `yaml:"type" json:"type"`
	Label string    `yaml:"label" json:"label"`
	Icon  string    `yaml:"icon,omitempty" json:"icon,omitempty"`
}

// PriorityDef maps a numeric priority level to a label.
type PriorityDef struct {
	Level int    `yaml:"level" json:"level"`
	Label string `yaml:"label" json:"label"`
}

// UnmappedColumnKey is the column key reserved for issues whose status has no
// definition. A board config may not declare a status with this key.
const UnmappedColumnKey = "unmapped"

// BoardConfig is the per-session description of the board. It is the sole
// authority for which column a status maps to.
type BoardConfig struct {
	Statuses   []StatusDef   `yaml:"statuses" json:"statuses"`
	Categories []CategoryDef `yaml:"categories,omitempty" json:"categories,omitempty"`
	Priorities []PriorityDef `yaml:"priorities,omitempty" json:"priorities,omitempty"`
}

// DefaultBoardConfig returns the stock beads workflow.
func DefaultBoardConfig() BoardConfig {
	return BoardConfig{
		Statuses: []StatusDef{
			{Key: StatusOpen, Label: "Open"},
			{Key: StatusInProgress, Label: "In Progress"},
			{Key: StatusBlocked, Label: "Blocked"},
			{Key: StatusClosed, Label: "Closed", Terminal: true},
		},
		Categories: []CategoryDef{
			{Type: TypeInitiative, Label: "Initiative"},
			{Type: TypeEpic, Label: "Epic"},
			{Type: TypeStory, Label: "Story"},
			{Type: TypeTask, Label: "Task"},
			{Type: TypeSubTask, Label: "Sub-task"},
			{Type: TypeBug, Label: "Bug"},
			{Type: TypeChore, Label: "Chore"},
		},
		Priorities: []PriorityDef{
			{Level: 0, Label: "Critical"},
			{Level: 1, Label: "High"},
			{Level: 2, Label: "Medium"},
			{Level: 3, Label: "Low"},
			{Level: 4, Label: "Backlog"},
		},
	}
}

// Clone returns a deep copy of the configuration.
func (c BoardConfig) Clone() BoardConfig {
	return BoardConfig{
		Statuses:   slices.Clone(c.Statuses),
		Categories: slices.Clone(c.Categories),
		Priorities: slices.Clone(c.Priorities),
	}
}

// Validate rejects configurations with no columns, duplicate status keys or
// a status using the reserved UnmappedColumnKey.
func (c BoardConfig) Validate() error {
	if len(c.Statuses) == 0 {
		return fmt.Errorf("board config: at least one status is required")
	}
	seen := make(map[Status]bool, len(c.Statuses))
	for _, s := range c.Statuses {
		if s.Key == "" {
			return fmt.Errorf("board config: status with empty key")
		}
		if s.Key == UnmappedColumnKey {
			return fmt.Errorf("board config: status key %q is reserved", s.Key)
		}
		if seen[s.Key] {
			return fmt.Errorf("board config: duplicate status %q", s.Key)
		}
		seen[s.Key] = true
	}
	return nil
}

// StatusDef returns the definition for a status key.
func (c BoardConfig) StatusDef(key Status) (StatusDef, bool) {
	for _, s := range c.Statuses {
		if s.Key == key {
			return s, true
		}
	}
	return StatusDef{}, false
}

// IsTerminal reports whether the configuration marks the status as a closed
// state. Statuses the configuration does not know fall back to the
// well-known terminal set.
func (c BoardConfig) IsTerminal(status Status) bool {
	if def, ok := c.StatusDef(status); ok {
		return def.Terminal
	}
	return status.IsClosed()
}

// CategoryFor returns the category definition for an issue type.
func (c BoardConfig) CategoryFor(t IssueType) (CategoryDef, bool) {
	for _, cat := range c.Categories {
		if cat.Type == t {
			return cat, true
		}
	}
	return CategoryDef{}, false
}

// PriorityLabel returns the configured label for a priority level, or "P<n>".
func (c BoardConfig) PriorityLabel(level int) string {
	for _, p := range c.Priorities {
		if p.Level == level {
			return p.Label
		}
	}
	return fmt.Sprintf("P%d", level)
}
