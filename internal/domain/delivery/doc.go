/*
Package delivery runs the per-view delivery mode state machine.

A View walks proxy, then embed, then default, rendering each mode through a
Surface and waiting for a matching signal or a timer:

	proxy-pending --ok--------------------------------------------> settled(proxy)
	      |
	  error/timeout --allowEmbedding && probe allowed--> embed-pending --load--> settled(embed)
	      |                                                   |
	      +--otherwise--> default-active <------timeout-------+
	                           |
	                           +--> settled(default)

Signals are serialized onto one goroutine. Each attempt carries a fresh
token; signals for any other token are dropped. Once the view settles,
Deliver reports false for everything.

Every fallback transition records exactly one telemetry event. Successes are
reported to the Observer only.
*/
package delivery
