/*
Package monitoring provides Prometheus metrics for the demo orchestrator.

# Metrics

  - HTTP: request count, latency, and response size per route template
  - Proxy: renders by outcome (ok or failure reason) and render latency
  - Relay and probe: request counts per target
  - Views: fallback transitions by reason, settles by mode, time to settle,
    active view channels
  - Telemetry: reporting sink failures
  - Breakers: origin breaker state changes

# Usage

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

Metrics also satisfies delivery.Observer so views report transitions directly.
*/
package monitoring
