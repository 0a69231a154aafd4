package resilience

import (
	"context"
	"sync"
	"time"
)

// Set lazily creates one Breaker per key with a shared policy
type Set struct {
	policy Policy
	now    func() time.Time

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewSet creates an empty breaker set
func NewSet(policy Policy) *Set {
	return &Set{
		policy:   policy.withDefaults(),
		now:      time.Now,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for key, creating it on first use
func (s *Set) Get(key string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[key]
	if !ok {
		b = newBreaker(key, s.policy, s.now)
		s.breakers[key] = b
	}
	return b
}

// Do runs fn through the breaker for key
func (s *Set) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return s.Get(key).Do(ctx, fn)
}

// Snapshot reports the state of every known breaker
func (s *Set) Snapshot() map[string]State {
	s.mu.Lock()
	breakers := make([]*Breaker, 0, len(s.breakers))
	for _, b := range s.breakers {
		breakers = append(breakers, b)
	}
	s.mu.Unlock()

	out := make(map[string]State, len(breakers))
	for _, b := range breakers {
		out[b.Key()] = b.State()
	}
	return out
}
