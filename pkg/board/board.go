// Package board maps issues onto kanban columns and display glyphs.
package board

import (
	"github.com/vanderheijden86/beadsync/pkg/model"
)

// UnmappedColumn collects issues whose status has no column definition, so no
// issue is ever hidden from the board.
const UnmappedColumn = model.UnmappedColumnKey

// UnmappedLabel is the header shown for UnmappedColumn.
const UnmappedLabel = "Other"

// Icon is a display token for a card. The rendering layer decides how a token
// is drawn.
type Icon string

const (
	IconUnchecked  Icon = "unchecked"
	IconChecked    Icon = "checked"
	IconBookmark   Icon = "bookmark"
	IconBookmarked Icon = "bookmarked"
	IconInitiative Icon = "flag"
	IconEpic       Icon = "lightning"
	IconSubTask    Icon = "subtask"
	IconBug        Icon = "bug"
	IconChore      Icon = "wrench"
	IconTag        Icon = "tag"
)

// Glyph returns the terminal rendering of an icon token.
func (i Icon) Glyph() string {
	switch i {
	case IconUnchecked:
		return "☐"
	case IconChecked:
		return "☑"
	case IconBookmark:
		return "◇"
	case IconBookmarked:
		return "◆"
	case IconInitiative:
		return "⚑"
	case IconEpic:
		return "⚡"
	case IconSubTask:
		return "↳"
	case IconBug:
		return "✗"
	case IconChore:
		return "⚙"
	default:
		return "#"
	}
}

// ColumnFor returns the column key for an issue: its status when the board
// configuration defines it, otherwise UnmappedColumn.
func ColumnFor(issue *model.Issue, cfg model.BoardConfig) string {
	if issue == nil {
		return UnmappedColumn
	}
	if _, ok := cfg.StatusDef(issue.Status); ok {
		return string(issue.Status)
	}
	return UnmappedColumn
}

// IconFor resolves the icon for a type/status pair using the well-known
// terminal statuses. It is total: every pair yields exactly one icon.
func IconFor(t model.IssueType, status model.Status) Icon {
	return iconFor(t, status.IsClosed())
}

func iconFor(t model.IssueType, terminal bool) Icon {
	switch t {
	case model.TypeTask:
		if terminal {
			return IconChecked
		}
		return IconUnchecked
	case model.TypeStory:
		if terminal {
			return IconBookmarked
		}
		return IconBookmark
	case model.TypeInitiative:
		return IconInitiative
	case model.TypeEpic:
		return IconEpic
	case model.TypeSubTask:
		return IconSubTask
	case model.TypeBug:
		return IconBug
	case model.TypeChore:
		return IconChore
	default:
		return IconTag
	}
}

// Categorizer resolves columns, icons and labels against one board
// configuration.
type Categorizer struct {
	cfg model.BoardConfig
}

// NewCategorizer binds a categorizer to cfg.
func NewCategorizer(cfg model.BoardConfig) Categorizer {
	return Categorizer{cfg: cfg}
}

// Column is ColumnFor with the bound configuration.
func (c Categorizer) Column(issue *model.Issue) string {
	return ColumnFor(issue, c.cfg)
}

// Icon resolves an issue's icon, taking terminal states from the board
// configuration. A configured category icon overrides the built-in table for
// types without a terminal toggle.
func (c Categorizer) Icon(issue *model.Issue) Icon {
	terminal := c.cfg.IsTerminal(issue.Status)
	switch issue.IssueType {
	case model.TypeTask, model.TypeStory:
		return iconFor(issue.IssueType, terminal)
	}
	if cat, ok := c.cfg.CategoryFor(issue.IssueType); ok && cat.Icon != "" {
		return Icon(cat.Icon)
	}
	return iconFor(issue.IssueType, terminal)
}

// Category returns the display label for an issue type.
func (c Categorizer) Category(t model.IssueType) string {
	if cat, ok := c.cfg.CategoryFor(t); ok && cat.Label != "" {
		return cat.Label
	}
	if t == "" {
		return "Issue"
	}
	return string(t)
}

// PriorityLabel returns the display label for a priority level.
func (c Categorizer) PriorityLabel(level int) string {
	return c.cfg.PriorityLabel(level)
}

// ColumnLabel returns the header for a column key.
func (c Categorizer) ColumnLabel(key string) string {
	if key == UnmappedColumn {
		return UnmappedLabel
	}
	if def, ok := c.cfg.StatusDef(model.Status(key)); ok && def.Label != "" {
		return def.Label
	}
	return key
}
