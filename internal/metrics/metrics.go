package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metrics for mailboard
type Metrics struct {
	// Upstream (Marketing API) metrics
	UpstreamRequestsTotal          *prometheus.CounterVec
	UpstreamRequestDurationSeconds *prometheus.HistogramVec

	// Dashboard HTTP metrics
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	// Session cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// System metrics
	UptimeSeconds prometheus.Gauge

	registry  *prometheus.Registry
	startTime time.Time
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailboard_upstream_requests_total",
				Help: "Total number of Marketing API requests",
			},
			[]string{"endpoint", "status"},
		),
		UpstreamRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailboard_upstream_request_duration_seconds",
				Help:    "Marketing API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailboard_http_requests_total",
				Help: "Total number of dashboard HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailboard_http_request_duration_seconds",
				Help:    "Dashboard HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailboard_cache_hits_total",
				Help: "Session snapshot cache hits",
			},
			[]string{"section"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailboard_cache_misses_total",
				Help: "Session snapshot cache misses",
			},
			[]string{"section"},
		),
		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailboard_uptime_seconds",
				Help: "Seconds since process start",
			},
		),
		registry:  reg,
		startTime: time.Now(),
	}

	reg.MustRegister(
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDurationSeconds,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.UptimeSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the metrics registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveUpstream implements mailchimp.Recorder
func (m *Metrics) ObserveUpstream(endpoint, status string, seconds float64) {
	m.UpstreamRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.UpstreamRequestDurationSeconds.WithLabelValues(endpoint).Observe(seconds)
}

// CacheHit records a session cache hit for a dashboard section
func (m *Metrics) CacheHit(section string) {
	m.CacheHitsTotal.WithLabelValues(section).Inc()
}

// CacheMiss records a session cache miss for a dashboard section
func (m *Metrics) CacheMiss(section string) {
	m.CacheMissesTotal.WithLabelValues(section).Inc()
}

// UpdateUptime refreshes the uptime gauge
func (m *Metrics) UpdateUptime() {
	m.UptimeSeconds.Set(time.Since(m.startTime).Seconds())
}
