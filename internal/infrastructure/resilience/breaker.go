package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many half-open requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Policy configures breaker behavior
type Policy struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold int
	// Cooldown is how long the breaker stays open before admitting a probe
	Cooldown time.Duration
	// HalfOpenProbes is the number of concurrent calls admitted while half-open
	HalfOpenProbes int
	// IsFailure classifies a call result; nil means any non-nil error counts
	IsFailure func(err error) bool
	// OnStateChange is called outside the breaker lock after a recorded
	// outcome moves the breaker. The timed open to half-open step is not reported.
	OnStateChange func(key string, from, to State)
}

func (p Policy) withDefaults() Policy {
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = 5
	}
	if p.Cooldown <= 0 {
		p.Cooldown = 30 * time.Second
	}
	if p.HalfOpenProbes <= 0 {
		p.HalfOpenProbes = 1
	}
	if p.IsFailure == nil {
		p.IsFailure = func(err error) bool { return err != nil }
	}
	return p
}

// Breaker guards calls to a single upstream
type Breaker struct {
	key    string
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	inflight int
	openedAt time.Time
}

// New creates a closed breaker for key
func New(key string, policy Policy) *Breaker {
	return newBreaker(key, policy.withDefaults(), time.Now)
}

func newBreaker(key string, policy Policy, now func() time.Time) *Breaker {
	return &Breaker{key: key, policy: policy, now: now}
}

// Key returns the upstream this breaker guards
func (b *Breaker) Key() string {
	return b.key
}

// State returns the current state, promoting open to half-open once the cooldown elapsed
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance()
	return b.state
}

// Do runs fn if the breaker admits it and records the outcome
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			b.record(true)
			panic(r)
		}
	}()

	err := fn(ctx)
	// A caller giving up is not evidence against the upstream.
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		b.release()
		return err
	}
	b.record(b.policy.IsFailure(err))
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance()
	switch b.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.inflight >= b.policy.HalfOpenProbes {
			return ErrTooManyRequests
		}
	}
	b.inflight++
	return nil
}

func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inflight--
}

func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	b.inflight--

	from := b.state
	switch {
	case failed && b.state == StateHalfOpen:
		b.open()
	case failed:
		b.failures++
		if b.failures >= b.policy.FailureThreshold {
			b.open()
		}
	default:
		b.failures = 0
		b.state = StateClosed
	}
	to := b.state
	b.mu.Unlock()

	if from != to && b.policy.OnStateChange != nil {
		b.policy.OnStateChange(b.key, from, to)
	}
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.failures = 0
	b.openedAt = b.now()
}

// advance must be called with mu held
func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.policy.Cooldown {
		b.state = StateHalfOpen
	}
}
