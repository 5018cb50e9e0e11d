// Package push feeds issue changes published on a redis channel into a
// session. Each message is a JSON envelope naming one upsert or removal.
package push

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/beadsync/pkg/model"
	"github.com/vanderheijden86/beadsync/pkg/session"
)

// Envelope types.
const (
	TypeUpsert = "upsert"
	TypeRemove = "remove"
)

var (
	ErrUnknownType  = errors.New("push: unknown envelope type")
	ErrEmptyPayload = errors.New("push: envelope carries no issue or id")
)

// Envelope is the wire format of one notification.
type Envelope struct {
	Type   string        `json:"type"`
	Issue  *model.Issue  `json:"issue,omitempty"`
	Issues []model.Issue `json:"issues,omitempty"`
	ID     string        `json:"id,omitempty"`
	IDs    []string      `json:"ids,omitempty"`
}

// UpsertEnvelope wraps issues for publishing.
func UpsertEnvelope(issues ...model.Issue) Envelope {
	if len(issues) == 1 {
		return Envelope{Type: TypeUpsert, Issue: &issues[0]}
	}
	return Envelope{Type: TypeUpsert, Issues: issues}
}

// RemoveEnvelope wraps ids for publishing.
func RemoveEnvelope(ids ...string) Envelope {
	if len(ids) == 1 {
		return Envelope{Type: TypeRemove, ID: ids[0]}
	}
	return Envelope{Type: TypeRemove, IDs: ids}
}

// Decode parses a payload into the session event it describes. Records
// without an id are passed through; the session rejects them individually.
func Decode(payload []byte) (session.Event, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("push: decode envelope: %w", err)
	}
	return env.Event()
}

// Event converts the envelope to a session event.
func (e Envelope) Event() (session.Event, error) {
	switch e.Type {
	case TypeUpsert:
		issues := e.Issues
		if e.Issue != nil {
			issues = append([]model.Issue{*e.Issue}, issues...)
		}
		if len(issues) == 0 {
			return nil, ErrEmptyPayload
		}
		return session.Upsert{Issues: issues}, nil
	case TypeRemove:
		ids := e.IDs
		if e.ID != "" {
			ids = append([]string{e.ID}, ids...)
		}
		if len(ids) == 0 {
			return nil, ErrEmptyPayload
		}
		return session.Remove{IDs: ids}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, e.Type)
	}
}
