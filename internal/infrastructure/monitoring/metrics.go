package monitoring

import (
	"context"
	"time"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/delivery"
	"github.com/alanensastegui/subsights-demo/backend/internal/domain/telemetry"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/resilience"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "demo"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Proxy metrics
	ProxyRenders        *prometheus.CounterVec
	ProxyRenderDuration *prometheus.HistogramVec
	RelayRequests       *prometheus.CounterVec
	Probes              *prometheus.CounterVec
	BreakerTransitions  *prometheus.CounterVec

	// View metrics
	ViewTransitions *prometheus.CounterVec
	ViewsSettled    *prometheus.CounterVec
	ViewSettleTime  *prometheus.HistogramVec
	ViewsActive     prometheus.Gauge
	WSMessages      *prometheus.CounterVec

	// Telemetry metrics
	EventsRecorded *prometheus.CounterVec
	SinkFailures   *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics registers every collector with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
	m.ResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "route"},
	)

	m.ProxyRenders = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_renders_total",
			Help:      "Proxy renders by outcome (ok or failure reason)",
		},
		[]string{"slug", "outcome"},
	)
	m.ProxyRenderDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proxy_render_duration_seconds",
			Help:      "Origin fetch and injection time in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 4, 7, 10},
		},
		[]string{"outcome"},
	)
	m.RelayRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_requests_total",
			Help:      "Relayed network calls by upstream status class",
		},
		[]string{"slug", "status"},
	)
	m.Probes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Embedding viability probes by verdict",
		},
		[]string{"slug", "allowed"},
	)
	m.BreakerTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "origin_breaker_transitions_total",
			Help:      "Origin circuit breaker state changes",
		},
		[]string{"to"},
	)

	m.ViewTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_transitions_total",
			Help:      "Delivery fallback transitions",
		},
		[]string{"slug", "from", "to", "reason"},
	)
	m.ViewsSettled = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "views_settled_total",
			Help:      "Views settled by final mode",
		},
		[]string{"slug", "mode"},
	)
	m.ViewSettleTime = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "view_settle_seconds",
			Help:      "Time from view start to settle",
			Buckets:   []float64{.25, .5, 1, 2, 4, 7, 10, 15, 20},
		},
		[]string{"mode"},
	)
	m.ViewsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "views_active",
			Help:      "Open view channels",
		},
	)
	m.WSMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "View channel messages",
		},
		[]string{"direction", "type"},
	)

	m.EventsRecorded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_recorded_total",
			Help:      "Orchestration events accepted by the telemetry store",
		},
		[]string{"reason", "mode"},
	)
	m.SinkFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_sink_failures_total",
			Help:      "Reporting sink failures",
		},
		[]string{"sink"},
	)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, route).Observe(float64(respSize))
}

// RecordProxyRender records a proxy render; reason is empty on success
func (m *Metrics) RecordProxyRender(slug string, reason types.Reason, duration time.Duration) {
	outcome := "ok"
	if reason != "" {
		outcome = reason.String()
	}
	m.ProxyRenders.WithLabelValues(slug, outcome).Inc()
	m.ProxyRenderDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordRelay records a relayed call
func (m *Metrics) RecordRelay(slug string, status int) {
	m.RelayRequests.WithLabelValues(slug, statusClass(status)).Inc()
}

// RecordProbe records a probe verdict
func (m *Metrics) RecordProbe(slug string, allowed bool) {
	verdict := "false"
	if allowed {
		verdict = "true"
	}
	m.Probes.WithLabelValues(slug, verdict).Inc()
}

// BreakerChanged is a resilience.Policy OnStateChange hook
func (m *Metrics) BreakerChanged(_ string, _, to resilience.State) {
	m.BreakerTransitions.WithLabelValues(to.String()).Inc()
}

// Transition implements delivery.Observer
func (m *Metrics) Transition(slug string, from, to delivery.State, reason types.Reason) {
	m.ViewTransitions.WithLabelValues(slug, from.String(), to.String(), reason.String()).Inc()
}

// Settled implements delivery.Observer
func (m *Metrics) Settled(slug string, mode types.Mode, elapsed time.Duration) {
	m.ViewsSettled.WithLabelValues(slug, mode.String()).Inc()
	m.ViewSettleTime.WithLabelValues(mode.String()).Observe(elapsed.Seconds())
}

// RecordWSMessage records a view channel message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncViewsActive increments open view channels
func (m *Metrics) IncViewsActive() {
	m.ViewsActive.Inc()
}

// DecViewsActive decrements open view channels
func (m *Metrics) DecViewsActive() {
	m.ViewsActive.Dec()
}

// Name implements telemetry.Sink
func (m *Metrics) Name() string { return "metrics" }

// Report implements telemetry.Sink by counting the event
func (m *Metrics) Report(_ context.Context, event telemetry.Event) error {
	m.EventsRecorded.WithLabelValues(event.Reason.String(), event.Mode.String()).Inc()
	return nil
}

// SinkFailed is a telemetry sink failure hook
func (m *Metrics) SinkFailed(sink string) {
	m.SinkFailures.WithLabelValues(sink).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "error"
	}
}
