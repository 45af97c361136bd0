package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Gating metrics
	Decisions        *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	InflightKeys     prometheus.Gauge
	GuardedRedirects prometheus.Counter

	// Analyzer metrics
	AnalyzerCalls    *prometheus.CounterVec
	AnalyzerDuration prometheus.Histogram

	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsEnded   prometheus.Counter
	SessionActive   prometheus.Gauge

	// Bridge metrics
	BridgeConnections prometheus.Gauge
	BridgeMessages    *prometheus.CounterVec
	TabsOpen          prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		Decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_gating_decisions_total",
				Help: "Gating decisions by outcome",
			},
			[]string{"outcome"},
		),
		CacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_cache_lookups_total",
				Help: "Classification cache lookups by result",
			},
			[]string{"result"},
		),
		InflightKeys: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_inflight_keys",
				Help: "URL keys currently awaiting classification",
			},
		),
		GuardedRedirects: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_guarded_redirects_total",
				Help: "Redirects suppressed by the loop guard",
			},
		),

		AnalyzerCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_analyzer_calls_total",
				Help: "External analyzer calls by status",
			},
			[]string{"status"},
		),
		AnalyzerDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gateway_analyzer_duration_seconds",
				Help:    "External analyzer call duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		SessionsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_sessions_started_total",
				Help: "Total number of sessions started",
			},
		),
		SessionsEnded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_sessions_ended_total",
				Help: "Total number of sessions ended",
			},
		),
		SessionActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_session_active",
				Help: "Whether a work session is currently active (0 or 1)",
			},
		),

		BridgeConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_bridge_connections",
				Help: "Active browser bridge connections",
			},
		),
		BridgeMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_bridge_messages_total",
				Help: "Bridge messages by direction and type",
			},
			[]string{"direction", "type"},
		),
		TabsOpen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_tabs_open",
				Help: "Open browser tabs known to the tab registry",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_uptime_seconds",
				Help: "Gateway uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDecision records one gating decision outcome.
func (m *Metrics) RecordDecision(outcome string) {
	m.Decisions.WithLabelValues(outcome).Inc()
	if outcome == "guarded" {
		m.GuardedRedirects.Inc()
	}
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordAnalyzerCall records one analyzer round trip.
func (m *Metrics) RecordAnalyzerCall(status string, duration time.Duration) {
	m.AnalyzerCalls.WithLabelValues(status).Inc()
	m.AnalyzerDuration.Observe(duration.Seconds())
}

// RecordBridgeMessage records one bridge message.
func (m *Metrics) RecordBridgeMessage(direction, msgType string) {
	m.BridgeMessages.WithLabelValues(direction, msgType).Inc()
}
