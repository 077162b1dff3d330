// Package metrics содержит счётчики и гистограммы Prometheus для отчётов и HTTP.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "field_service"

// Metrics безопасен для nil-получателя: без метрик методы ничего не делают.
type Metrics struct {
	operations     *prometheus.CounterVec
	renderDuration prometheus.Histogram
	signatures     *prometheus.CounterVec
	emails         *prometheus.CounterVec
	artifactBytes  *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_operations_total",
			Help:      "Report lifecycle operations by outcome.",
		}, []string{"operation", "outcome"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_render_duration_seconds",
			Help:      "Time spent rendering report PDFs.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signatures_applied_total",
			Help:      "Signatures stamped onto report PDFs.",
		}, []string{"slot"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Notification emails by template and outcome.",
		}, []string{"template", "outcome"}),
		artifactBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_size_bytes",
			Help:      "Size of written report artifacts.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 7),
		}, []string{"variant"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.operations,
		m.renderDuration,
		m.signatures,
		m.emails,
		m.artifactBytes,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Operation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.Observe(d.Seconds())
}

func (m *Metrics) Signature(slot string) {
	if m == nil {
		return
	}
	m.signatures.WithLabelValues(slot).Inc()
}

func (m *Metrics) Email(template string, err error) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(template, outcome(err)).Inc()
}

func (m *Metrics) ArtifactSize(variant string, size int64) {
	if m == nil {
		return
	}
	m.artifactBytes.WithLabelValues(variant).Observe(float64(size))
}

// GinMiddleware считает запросы по шаблону маршрута, а не по сырому пути.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
