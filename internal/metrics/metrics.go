package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicrm"

// Metrics stores Prometheus collectors for the carousel flows.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	selectionsTotal     *prometheus.CounterVec
	collisionsTotal     *prometheus.CounterVec
	qualitySamplesTotal *prometheus.CounterVec
	sloViolationsTotal  *prometheus.CounterVec
	coachingTotal       *prometheus.CounterVec
	coachingDuration    prometheus.Histogram
	activeStreams       prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		selectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "selections_total",
				Help:      "Caller-ID selections by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		),
		collisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collisions_total",
				Help:      "Team collisions detected by event type and severity.",
			},
			[]string{"type", "severity"},
		),
		qualitySamplesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quality_samples_total",
				Help:      "Call quality samples recorded, split by SLO compliance.",
			},
			[]string{"meets_slo"},
		),
		sloViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "slo_violations_total",
				Help:      "SLO violations by metric.",
			},
			[]string{"metric"},
		),
		coachingTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "coaching_total",
				Help:      "Coaching responses by source (model, rules, timeout).",
			},
			[]string{"source"},
		),
		coachingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "coaching_duration_seconds",
				Help:      "Time to produce a coaching response.",
				Buckets:   []float64{0.025, 0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.5, 1},
			},
		),
		activeStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "media_streams_active",
				Help:      "Media stream sessions currently registered.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.selectionsTotal,
		m.collisionsTotal,
		m.qualitySamplesTotal,
		m.sloViolationsTotal,
		m.coachingTotal,
		m.coachingDuration,
		m.activeStreams,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "/metrics" {
			return
		}
		m.recordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

func (m *Metrics) IncSelection(strategy, outcome string) {
	if m == nil {
		return
	}
	m.selectionsTotal.WithLabelValues(normalize(strategy), normalize(outcome)).Inc()
}

func (m *Metrics) IncCollision(kind, severity string) {
	if m == nil {
		return
	}
	m.collisionsTotal.WithLabelValues(normalize(kind), normalize(severity)).Inc()
}

// ObserveQualitySample counts a sample and each breached metric.
func (m *Metrics) ObserveQualitySample(meetsSLO bool, breached []string) {
	if m == nil {
		return
	}
	m.qualitySamplesTotal.WithLabelValues(strconv.FormatBool(meetsSLO)).Inc()
	for _, metric := range breached {
		m.sloViolationsTotal.WithLabelValues(normalize(metric)).Inc()
	}
}

func (m *Metrics) ObserveCoaching(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.coachingTotal.WithLabelValues(normalize(source)).Inc()
	m.coachingDuration.Observe(d.Seconds())
}

func (m *Metrics) SetActiveStreams(n int) {
	if m == nil {
		return
	}
	m.activeStreams.Set(float64(n))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func normalize(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "unknown"
	}
	return v
}
