package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes used as metric labels.
const (
	OutcomeSuccess            = "success"
	OutcomePreconditionFailed = "precondition_failed"
	OutcomeInfeasible         = "infeasible"
	OutcomePersistenceFailed  = "persistence_failed"
	OutcomeBusy               = "busy"
	OutcomeError              = "error"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec

	generationDuration *prometheus.HistogramVec
	generationsTotal   *prometheus.CounterVec
	entriesGenerated   prometheus.Gauge
	solverBranches     prometheus.Histogram
	notifications      *prometheus.CounterVec
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

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_cache_lookups_total",
		Help: "Report cache lookups by result",
	}, []string{"report", "result"})

	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Wall time of timetable generation runs",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
	}, []string{"outcome"})

	generationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_generations_total",
		Help: "Timetable generation runs by outcome",
	}, []string{"outcome"})

	entriesGenerated := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_entries_generated",
		Help: "Entries stored by the last successful generation",
	})

	solverBranches := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_solver_branches",
		Help:    "Search branches explored per solve",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_notifications_total",
		Help: "Timetable notification deliveries by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLookups, generationDuration, generationsTotal, entriesGenerated, solverBranches, notifications, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLookups:       cacheLookups,
		generationDuration: generationDuration,
		generationsTotal:   generationsTotal,
		entriesGenerated:   entriesGenerated,
		solverBranches:     solverBranches,
		notifications:      notifications,
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

// ObserveGeneration records one generation run. entries is only recorded on success.
func (m *MetricsService) ObserveGeneration(outcome string, duration time.Duration, entries int) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.generationsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.entriesGenerated.Set(float64(entries))
	}
}

// ObserveSolverBranches records the search effort of one solve.
func (m *MetricsService) ObserveSolverBranches(branches int64) {
	if m == nil {
		return
	}
	m.solverBranches.Observe(float64(branches))
}

// RecordCacheLookup counts report cache hits and misses.
func (m *MetricsService) RecordCacheLookup(report string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(report, result).Inc()
}

// RecordNotification counts notification delivery attempts.
func (m *MetricsService) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}
