// Package model defines the issue records and board configuration shared by
// the loaders, the reconciler and the rendering layer.
package model

import (
	"errors"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// ErrMissingID is returned by Validate for records without an identifier.
var ErrMissingID = errors.New("issue id is required")

// Status is a project-defined workflow state. The board configuration decides
// which column a status maps to.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
	StatusDone       Status = "done"
	StatusResolved   Status = "resolved"
	StatusCancelled  Status = "cancelled"
	StatusTombstone  Status = "tombstone"
)

// IsClosed reports whether the status is one of the well-known terminal
// states. Board configurations can declare additional terminal statuses.
func (s Status) IsClosed() bool {
	switch s {
	case StatusClosed, StatusDone, StatusResolved, StatusCancelled, StatusTombstone:
		return true
	default:
		return false
	}
}

// IsTombstone reports whether the issue was deleted upstream.
func (s Status) IsTombstone() bool {
	return s == StatusTombstone
}

// IssueType is the kind of work an issue tracks.
type IssueType string

const (
	TypeInitiative IssueType = "initiative"
	TypeEpic       IssueType = "epic"
	TypeStory      IssueType = "story"
	TypeTask       IssueType = "task"
	TypeSubTask    IssueType = "sub-task"
	TypeBug        IssueType = "bug"
	TypeChore      IssueType = "chore"
)

// IssueTypes lists the known issue types in hierarchy order.
func IssueTypes() []IssueType {
	return []IssueType{TypeInitiative, TypeEpic, TypeStory, TypeTask, TypeSubTask, TypeBug, TypeChore}
}

// Comment is a single discussion entry on an issue.
type Comment struct {
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// Issue is a single tracked record. Timestamps are kept as the raw ISO-8601
// strings delivered by the store so ordering is a plain string comparison.
type Issue struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	IssueType    IssueType      `json:"issue_type,omitempty"`
	Status       Status         `json:"status"`
	Priority     int            `json:"priority"`
	Assignee     string         `json:"assignee,omitempty"`
	Creator      string         `json:"created_by,omitempty"`
	Labels       []string       `json:"labels,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Comments     []Comment      `json:"comments,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	UpdatedAt    string         `json:"updated_at,omitempty"`
	ClosedAt     *string        `json:"closed_at,omitempty"`
	Custom       map[string]any `json:"custom,omitempty"`
}

// Validate checks the invariants a record must satisfy before it can enter
// the canonical table.
func (i *Issue) Validate() error {
	if i == nil || strings.TrimSpace(i.ID) == "" {
		return ErrMissingID
	}
	return nil
}

// IsClosed reports whether the issue has reached a well-known terminal state.
func (i *Issue) IsClosed() bool {
	return i.Status.IsClosed()
}

// Clone returns a deep copy so callers can hand the record to another owner
// without sharing slices or maps.
func (i Issue) Clone() Issue {
	out := i
	out.Labels = slices.Clone(i.Labels)
	out.Dependencies = slices.Clone(i.Dependencies)
	out.Comments = slices.Clone(i.Comments)
	if i.ClosedAt != nil {
		v := *i.ClosedAt
		out.ClosedAt = &v
	}
	if i.Custom != nil {
		out.Custom = maps.Clone(i.Custom)
	}
	return out
}

// Equal reports field-for-field structural equality. Nil and empty
// collections compare equal.
func (i *Issue) Equal(o *Issue) bool {
	if i == o {
		return true
	}
	if i == nil || o == nil {
		return false
	}
	if i.ID != o.ID || i.Title != o.Title || i.Description != o.Description ||
		i.IssueType != o.IssueType || i.Status != o.Status || i.Priority != o.Priority ||
		i.Assignee != o.Assignee || i.Creator != o.Creator ||
		i.CreatedAt != o.CreatedAt || i.UpdatedAt != o.UpdatedAt {
		return false
	}
	if (i.ClosedAt == nil) != (o.ClosedAt == nil) {
		return false
	}
	if i.ClosedAt != nil && *i.ClosedAt != *o.ClosedAt {
		return false
	}
	if !slices.Equal(i.Labels, o.Labels) || !slices.Equal(i.Dependencies, o.Dependencies) ||
		!slices.Equal(i.Comments, o.Comments) {
		return false
	}
	if len(i.Custom) != len(o.Custom) {
		return false
	}
	for k, v := range i.Custom {
		ov, ok := o.Custom[k]
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}
