// Package reporting forwards orchestration events to destinations outside
// the local telemetry buffer: the structured log, a NATS subject, and an
// HTTP webhook.
package reporting
