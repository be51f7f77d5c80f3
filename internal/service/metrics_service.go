package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	transitions         *prometheus.CounterVec
	transitionsRejected *prometheus.CounterVec
	readinessDuration   prometheus.Histogram
	lockWait            prometheus.Histogram
	cacheLatency        prometheus.Observer
	cacheWrite          prometheus.Observer
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	eventsDelivered     *prometheus.CounterVec
	eventsFailed        *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_transitions_total",
		Help: "Committed document and enrollment transitions by kind",
	}, []string{"kind"})

	transitionsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_transitions_rejected_total",
		Help: "Transitions refused by a precondition, by kind and error code",
	}, []string{"kind", "code"})

	readinessDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "readiness_computation_seconds",
		Help:    "Time spent deriving enrollment readiness",
		Buckets: prometheus.DefBuckets,
	})

	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "document_lock_wait_seconds",
		Help:    "Time spent waiting for the per-document lock",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for catalog cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for catalog cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total catalog cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total catalog cache misses",
	})

	eventsDelivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_events_delivered_total",
		Help: "Domain events delivered per sink",
	}, []string{"sink"})

	eventsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_events_failed_total",
		Help: "Domain events abandoned after retries per sink",
	}, []string{"sink"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal, transitions, transitionsRejected, readinessDuration, lockWait,
		cacheLatency, cacheWrite, cacheHits, cacheMisses, eventsDelivered, eventsFailed, goroutines,
		collectors.NewGoCollector(),
	)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		transitions:         transitions,
		transitionsRejected: transitionsRejected,
		readinessDuration:   readinessDuration,
		lockWait:            lockWait,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		eventsDelivered:     eventsDelivered,
		eventsFailed:        eventsFailed,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordTransition counts a committed transition.
func (m *MetricsService) RecordTransition(kind models.EventKind) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(kind)).Inc()
}

// RecordRejectedTransition counts a transition refused with the given code.
func (m *MetricsService) RecordRejectedTransition(kind models.EventKind, code string) {
	if m == nil {
		return
	}
	m.transitionsRejected.WithLabelValues(string(kind), code).Inc()
}

// ObserveReadiness records how long a readiness derivation took.
func (m *MetricsService) ObserveReadiness(duration time.Duration) {
	if m == nil {
		return
	}
	m.readinessDuration.Observe(duration.Seconds())
}

// ObserveLockWait records time spent acquiring a document lock.
func (m *MetricsService) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// Delivered implements events.Observer.
func (m *MetricsService) Delivered(sink string) {
	if m == nil {
		return
	}
	m.eventsDelivered.WithLabelValues(sink).Inc()
}

// Failed implements events.Observer.
func (m *MetricsService) Failed(sink string) {
	if m == nil {
		return
	}
	m.eventsFailed.WithLabelValues(sink).Inc()
}
