// Package main is the entry point for the Subsights demo orchestrator.
//
// The server renders registered partner sites with the Subsights widget
// injected, falling back from a same-origin proxy to direct embedding to a
// locally rendered default page, and records every fallback.
//
// Architecture:
//
//	Browser shell ⇄ view channel (websocket) → delivery state machine
//	              → origin proxy / relay → partner site
//	              → telemetry store → log, NATS, webhook sinks
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -registry /etc/subsights/targets.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
