// Package metrics wires Prometheus collectors for HTTP services and workers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/louisbranch/tradebook/internal/platform/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradebook"

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// HTTP holds request counters and latency histograms for one service.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	limited  *prometheus.CounterVec
}

// NewHTTP registers HTTP collectors for service on reg.
func NewHTTP(reg prometheus.Registerer, service string) *HTTP {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"service": service}
	return &HTTP{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "HTTP requests by route, method and status code.",
			ConstLabels: labels,
		}, []string{"route", "method", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request latency by route.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"route", "method"}),
		limited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "rate_limited_total",
			Help:        "Requests rejected by the rate limiter.",
			ConstLabels: labels,
		}, []string{"route"}),
	}
}

// RateLimited counts a rejected request.
func (m *HTTP) RateLimited(route string) {
	if m == nil {
		return
	}
	m.limited.WithLabelValues(route).Inc()
}

// Middleware records one observation per request. route labels the request;
// it should return the matched pattern, not the raw path.
func (m *HTTP) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := httpx.NewStatusRecorder(w)
			next.ServeHTTP(rec, r)

			label := route(r)
			m.requests.WithLabelValues(label, r.Method, strconv.Itoa(rec.Status())).Inc()
			m.duration.WithLabelValues(label, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

// Worker holds reminder-processing collectors.
type Worker struct {
	processed    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	tickDuration prometheus.Histogram
}

// NewWorker registers worker collectors on reg.
func NewWorker(reg prometheus.Registerer) *Worker {
	factory := promauto.With(reg)
	return &Worker{
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "processed_total",
			Help:      "Follow-ups processed by kind and outcome.",
		}, []string{"kind", "outcome"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "failed_total",
			Help:      "Follow-up processing failures by stage.",
		}, []string{"stage"}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one polling tick.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Processed counts a handled follow-up.
func (m *Worker) Processed(kind, outcome string) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(kind, outcome).Inc()
}

// Failed counts a failure at stage.
func (m *Worker) Failed(stage string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(stage).Inc()
}

// ObserveTick records the duration of one tick.
func (m *Worker) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}
