// Package observability wires Prometheus metrics and OpenTelemetry
// tracing for the guard service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// DecisionsTotal counts authorization decisions by outcome and
	// reason.
	DecisionsTotal *prometheus.CounterVec
	// EvaluationDuration observes engine evaluation latency. Evaluate
	// is sub-millisecond by design, hence the tight buckets.
	EvaluationDuration prometheus.Histogram
}

// NewMetrics registers and returns the metric set.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"code", "method", "path"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of latencies for HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code", "method", "path"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guard_decisions_total",
				Help: "Authorization decisions by outcome and reason.",
			},
			[]string{"allowed", "reason"},
		),
		EvaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "guard_evaluation_duration_seconds",
				Help:    "Policy engine evaluation latency.",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
		),
	}
	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.DecisionsTotal,
		m.EvaluationDuration,
	)
	return m
}

// ObserveDecision records one engine decision.
func (m *Metrics) ObserveDecision(allowed bool, reason string, evalMillis float64) {
	m.DecisionsTotal.WithLabelValues(strconv.FormatBool(allowed), reason).Inc()
	m.EvaluationDuration.Observe(evalMillis / 1000)
}

// GinMiddleware records HTTP metrics for every request.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		code := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(code, c.Request.Method, path).Inc()
		m.RequestDuration.WithLabelValues(code, c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
