// Package providers groups the outbound adapters the delivery orchestrator
// depends on.
//
//   - origin: fetches target pages, rewrites them for same-origin proxying
//     and relays subresource and API traffic back to the origin.
//   - probe: decides whether a target permits being framed, from its
//     X-Frame-Options and Content-Security-Policy headers.
//   - reporting: telemetry sinks that forward fallback events to NATS
//     or an HTTP webhook.
package providers
