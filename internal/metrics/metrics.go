// Package metrics exposes prometheus instrumentation for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "versenotes"

// Recorder owns a registry and the collectors registered on it. A nil
// Recorder records nothing.
type Recorder struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	passageFetches      *prometheus.CounterVec
	passageDuration     prometheus.Histogram
	noteMutations       *prometheus.CounterVec
	referenceResolution *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	recorder := &Recorder{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		passageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passage_fetches_total",
			Help:      "Upstream passage requests by outcome.",
		}, []string{"outcome"}),
		passageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "passage_fetch_duration_seconds",
			Help:      "Upstream passage request latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		noteMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "note_mutations_total",
			Help:      "Applied note mutations by operation.",
		}, []string{"operation"}),
		referenceResolution: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reference_resolutions_total",
			Help:      "Reference resolutions by outcome.",
		}, []string{"outcome"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		recorder.httpRequests,
		recorder.httpDuration,
		recorder.passageFetches,
		recorder.passageDuration,
		recorder.noteMutations,
		recorder.referenceResolution,
	)
	return recorder
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveFetch records an upstream passage request.
func (r *Recorder) ObserveFetch(outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.passageFetches.WithLabelValues(outcome).Inc()
	r.passageDuration.Observe(duration.Seconds())
}

func (r *Recorder) ObserveNoteMutation(operation string) {
	if r == nil {
		return
	}
	r.noteMutations.WithLabelValues(operation).Inc()
}

func (r *Recorder) ObserveResolution(parsed bool) {
	if r == nil {
		return
	}
	outcome := "malformed"
	if parsed {
		outcome = "parsed"
	}
	r.referenceResolution.WithLabelValues(outcome).Inc()
}
