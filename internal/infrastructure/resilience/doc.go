/*
Package resilience provides circuit breakers for outbound calls.

Each upstream origin gets its own Breaker from a Set, so one unreachable
customer site does not slow requests for every other target.

# States

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[probe succeeds]-> Closed
	                                                        |
	                                                 [probe fails]
	                                                        v
	                                                      Open

While open, calls fail immediately with ErrCircuitOpen.

# Usage

	breakers := resilience.NewSet(resilience.Policy{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	})

	err := breakers.Do(ctx, origin, func(ctx context.Context) error {
		return fetch(ctx, origin)
	})
*/
package resilience
