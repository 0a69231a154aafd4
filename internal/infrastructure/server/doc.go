// Package server wires the demo orchestrator together: configuration,
// target registry, telemetry store and sinks, origin proxy, prober, view
// channel, and the gin router that exposes them.
package server
