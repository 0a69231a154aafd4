// Package id generates identifiers for orchestration records.
//
// All identifiers are ULIDs so that event logs sort by creation time
// without consulting the timestamp field. Prefixes keep them readable
// in logs:
//   - evt_*  orchestration events
//   - sess_* browser-profile sessions
//   - view_* page views driving a delivery state machine
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventID identifies a persisted orchestration event
type EventID string

// SessionID identifies a browser profile across page views
type SessionID string

// ViewID identifies one page view
type ViewID string

const (
	EventPrefix   = "evt"
	SessionPrefix = "sess"
	ViewPrefix    = "view"
)

// Generator produces monotonic ULIDs from a shared entropy source
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// NewGeneratorWithEntropy creates a generator with a caller supplied
// entropy source and clock. Tests use it for deterministic output.
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{entropy: entropy, now: now}
}

// Generate returns a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// WithPrefix returns "<prefix>_<ulid>"
func (g *Generator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewEventID generates an event identifier
func (g *Generator) NewEventID() EventID {
	return EventID(g.WithPrefix(EventPrefix))
}

// NewSessionID generates a session identifier
func (g *Generator) NewSessionID() SessionID {
	return SessionID(g.WithPrefix(SessionPrefix))
}

// NewViewID generates a view identifier
func (g *Generator) NewViewID() ViewID {
	return ViewID(g.WithPrefix(ViewPrefix))
}

// NewEventID generates an event identifier from the default generator
func NewEventID() EventID { return Default().NewEventID() }

// NewSessionID generates a session identifier from the default generator
func NewSessionID() SessionID { return Default().NewSessionID() }

// NewViewID generates a view identifier from the default generator
func NewViewID() ViewID { return Default().NewViewID() }

func (id EventID) String() string   { return string(id) }
func (id SessionID) String() string { return string(id) }
func (id ViewID) String() string    { return string(id) }

// IsValid reports whether s is "<prefix>_<ulid>" for the given prefix
func IsValid(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.ParseStrict(rest)
	return err == nil
}

// Timestamp extracts the creation time of a prefixed identifier
func Timestamp(s string) (time.Time, error) {
	_, raw, ok := strings.Cut(s, "_")
	if !ok {
		raw = s
	}
	parsed, err := ulid.ParseStrict(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
