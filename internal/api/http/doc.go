// Package http provides the REST handlers for the demo orchestrator.
//
// Endpoints:
//   - Pages: /demo/:slug (shell), /api/demo/:slug/default
//   - Proxy: /api/demo/:slug/proxy, /api/demo/:slug/relay, /api/demo/:slug/probe
//   - Events: /api/demo/events, /api/demo/events/summary
//   - Targets: /api/targets
//   - Health: /health
//
// The proxy endpoint answers 200 text/html for every registered slug, with
// either the injected target page or an error-announcement document. Unknown
// slugs are the only 404.
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Deps{Registry: reg, Proxy: proxy, Events: store})
//	router.GET("/api/demo/:slug/proxy", handlers.Proxy)
package http
