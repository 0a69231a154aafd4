// Package types provides the closed vocabularies shared by the proxy,
// the delivery state machine, and telemetry.
//
// Core Types:
//   - Mode: proxy, embed, default
//   - Reason: the closed set of fallback reasons persisted in events
//   - Status: ok / error carried by the cross-document announcement
//
// Values are stable strings. They are persisted in events and parsed
// from client messages, so additions must be append-only.
package types
