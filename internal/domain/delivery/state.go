package delivery

import (
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/telemetry"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
)

// State is a view's position in the fallback chain.
type State string

const (
	StateProxyPending  State = "proxy-pending"
	StateEmbedPending  State = "embed-pending"
	StateDefaultActive State = "default-active"
	StateSettled       State = "settled"
)

func (s State) String() string { return string(s) }

func stateFor(m types.Mode) State {
	switch m {
	case types.ModeEmbed:
		return StateEmbedPending
	case types.ModeDefault:
		return StateDefaultActive
	default:
		return StateProxyPending
	}
}

// SignalKind distinguishes client signals.
type SignalKind string

const (
	// SignalProxyStatus is the proxied document's ok/error announcement.
	SignalProxyStatus SignalKind = "demo-proxy-status"
	// SignalEmbedLoad is the embed frame's load callback.
	SignalEmbedLoad SignalKind = "embed-load"
)

// Signal is an asynchronous report from the client about one attempt.
type Signal struct {
	Kind        SignalKind
	Attempt     string
	Status      types.Status
	Reason      types.Reason
	Performance *telemetry.Performance
}

// Render instructs the client to show one mode.
type Render struct {
	Mode    types.Mode `json:"mode"`
	Attempt string     `json:"attempt"`
	Src     string     `json:"src"`
}

// Attempt is one try at rendering. It is discarded once it resolves.
type Attempt struct {
	Mode    types.Mode
	ID      string
	Started time.Time
}

// Transition is one recorded move between states.
type Transition struct {
	From   State
	To     State
	Reason types.Reason
	At     time.Time
}

// Outcome summarizes a finished view.
type Outcome struct {
	Mode        types.Mode
	Transitions []Transition
	Duration    time.Duration
}
