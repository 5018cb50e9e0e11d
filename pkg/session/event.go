package session

import (
	"github.com/vanderheijden86/beadsync/pkg/model"
	"github.com/vanderheijden86/beadsync/pkg/ordering"
)

// Event is one unit of work for the session loop.
type Event interface {
	eventName() string
}

// FullLoad replaces the issue set with a complete load from the store.
type FullLoad struct {
	Issues []model.Issue
	Source string // optional, for logs
}

// Upsert merges pushed or watched records into the table.
type Upsert struct {
	Issues []model.Issue
}

// Remove deletes issues by id.
type Remove struct {
	IDs []string
}

// Optimistic applies a local edit before the store confirms it. It follows
// the same last-writer-wins rule as any other upsert.
type Optimistic struct {
	Issue model.Issue
}

// SetPreset changes the card order.
type SetPreset struct {
	Preset ordering.Preset
}

// SetBoardConfig swaps the board layout.
type SetBoardConfig struct {
	Config model.BoardConfig
}

// Refresh forces a frame even when nothing changed.
type Refresh struct{}

func (FullLoad) eventName() string       { return "full_load" }
func (Upsert) eventName() string         { return "upsert" }
func (Remove) eventName() string         { return "remove" }
func (Optimistic) eventName() string     { return "optimistic" }
func (SetPreset) eventName() string      { return "set_preset" }
func (SetBoardConfig) eventName() string { return "set_board_config" }
func (Refresh) eventName() string        { return "refresh" }
