// Package telemetry records orchestration events.
//
// Every fallback the delivery state machine takes becomes one Event. The
// Store validates events against a closed schema, stamps them, keeps the
// newest entries in a capped log, and forwards each event to reporting
// sinks. Storage and sink failures are logged and swallowed: telemetry
// must never interrupt delivery.
package telemetry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
)

// ErrInvalidEvent is returned by Record when the input fails validation.
var ErrInvalidEvent = errors.New("invalid orchestration event")

// Performance is an optional client-side sample taken when a mode settled
// or failed.
type Performance struct {
	LoadTimeMs  float64 `json:"loadTimeMs"`
	MemoryBytes int64   `json:"memoryBytes,omitempty"`
	DOMNodes    int     `json:"domNodes,omitempty"`
}

// Event is the persisted record shape.
type Event struct {
	ID          string                 `json:"id"`
	Slug        string                 `json:"slug"`
	Reason      types.Reason           `json:"reason"`
	Mode        types.Mode             `json:"mode"`
	Timestamp   int64                  `json:"timestamp"`
	SessionID   string                 `json:"sessionId"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Performance *Performance           `json:"performance,omitempty"`
}

// Input is what callers supply; the store adds id, timestamp, and session.
type Input struct {
	Slug        string                 `json:"slug"`
	Reason      types.Reason           `json:"reason"`
	Mode        types.Mode             `json:"mode"`
	SessionID   string                 `json:"sessionId,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Performance *Performance           `json:"performance,omitempty"`
}

// Validate checks the caller-supplied fields.
func (in Input) Validate() error {
	if strings.TrimSpace(in.Slug) == "" {
		return fmt.Errorf("%w: slug is empty", ErrInvalidEvent)
	}
	if !in.Reason.Valid() {
		return fmt.Errorf("%w: unknown reason %q", ErrInvalidEvent, in.Reason)
	}
	if !in.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidEvent, in.Mode)
	}
	if p := in.Performance; p != nil && (p.LoadTimeMs < 0 || p.MemoryBytes < 0 || p.DOMNodes < 0) {
		return fmt.Errorf("%w: negative performance sample", ErrInvalidEvent)
	}
	return nil
}

// Validate checks a stored event, including the stamped fields.
func (e Event) Validate() error {
	in := Input{Slug: e.Slug, Reason: e.Reason, Mode: e.Mode, Performance: e.Performance}
	if err := in.Validate(); err != nil {
		return err
	}
	if e.ID == "" || e.SessionID == "" || e.Timestamp <= 0 {
		return fmt.Errorf("%w: missing id, session, or timestamp", ErrInvalidEvent)
	}
	return nil
}
