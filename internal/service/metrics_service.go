package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface, the cache and the enrollment/gradebook domain counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	enrollmentsTotal  *prometheus.CounterVec
	gradesRecorded    prometheus.Counter
	absencesRecorded  prometheus.Counter
	situationFailures prometheus.Counter
	exportJobsTotal   *prometheus.CounterVec
}

// NewMetricsService registers the collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	enrollmentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollments_total",
		Help: "Completed enrollments by mode",
	}, []string{"mode"})

	gradesRecorded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grades_recorded_total",
		Help: "Unit grades appended to report cards",
	})

	absencesRecorded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "absences_recorded_total",
		Help: "Absences recorded on report cards",
	})

	situationFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "situation_failures_total",
		Help: "Report cards flipped to failed by the absence limit",
	})

	exportJobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "export_jobs_total",
		Help: "Transcript export jobs by terminal status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite,
		cacheHits, cacheMisses, enrollmentsTotal, gradesRecorded, absencesRecorded,
		situationFailures, exportJobsTotal, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		enrollmentsTotal:  enrollmentsTotal,
		gradesRecorded:    gradesRecorded,
		absencesRecorded:  absencesRecorded,
		situationFailures: situationFailures,
		exportJobsTotal:   exportJobsTotal,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// RecordHTTPRequest observes one served request.
func (s *MetricsService) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if s == nil {
		return
	}
	s.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordCacheOperation observes a cache lookup.
func (s *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if s == nil {
		return
	}
	s.cacheLatency.Observe(duration.Seconds())
	if hit {
		s.cacheHits.Inc()
	} else {
		s.cacheMisses.Inc()
	}
}

// ObserveCacheWrite observes a cache set.
func (s *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if s == nil {
		return
	}
	s.cacheWrite.Observe(duration.Seconds())
}

// RecordEnrollment counts a completed enrollment by mode.
func (s *MetricsService) RecordEnrollment(mode string) {
	if s == nil {
		return
	}
	s.enrollmentsTotal.WithLabelValues(mode).Inc()
}

// RecordGrade counts one appended grade.
func (s *MetricsService) RecordGrade() {
	if s == nil {
		return
	}
	s.gradesRecorded.Inc()
}

// RecordAbsence counts one recorded absence and, when the limit was
// reached, one situation failure.
func (s *MetricsService) RecordAbsence(failed bool) {
	if s == nil {
		return
	}
	s.absencesRecorded.Inc()
	if failed {
		s.situationFailures.Inc()
	}
}

// RecordExportJob counts a finished export job by status.
func (s *MetricsService) RecordExportJob(status string) {
	if s == nil {
		return
	}
	s.exportJobsTotal.WithLabelValues(status).Inc()
}
