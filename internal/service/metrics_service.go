package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/foster-pipeline-api/internal/roster"
)

// MetricsService owns the Prometheus registry. All methods are nil-safe so
// callers may run with metrics disabled.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	statusWrites    *prometheus.CounterVec
	flushes         *prometheus.CounterVec
	pendingDepth    prometheus.Gauge
	statusChanges   *prometheus.CounterVec
	groupRequests   *prometheus.CounterVec
	emailsSent      prometheus.Counter
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roster_refresh_duration_seconds",
			Help:    "Duration of roster fetches from the directory",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"result"}),
		statusWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_status_writes_total",
			Help: "Status writes sent to the directory",
		}, []string{"result"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_flushes_total",
			Help: "Completed flush cycles, partial when any write failed",
		}, []string{"result"}),
		pendingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roster_pending_updates",
			Help: "Status updates queued but not yet confirmed",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "applicant_status_changes_total",
			Help: "Accepted applicant status changes by target status",
		}, []string{"status"}),
		groupRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "group_membership_requests_total",
			Help: "Mailing-group membership requests by result",
		}, []string{"result"}),
		emailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interest_emails_sent_total",
			Help: "Applicants mailed through the interest mailing",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.refreshDuration, m.statusWrites, m.flushes,
		m.pendingDepth, m.statusChanges, m.groupRequests, m.emailsSent, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RefreshCompleted implements roster.Observer.
func (m *MetricsService) RefreshCompleted(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.refreshDuration.WithLabelValues(result).Observe(took.Seconds())
}

// StatusWritten implements roster.Observer.
func (m *MetricsService) StatusWritten(result string) {
	if m == nil {
		return
	}
	m.statusWrites.WithLabelValues(result).Inc()
}

// FlushCompleted implements roster.Observer.
func (m *MetricsService) FlushCompleted(_, failed int) {
	if m == nil {
		return
	}
	result := "success"
	if failed > 0 {
		result = "partial"
	}
	m.flushes.WithLabelValues(result).Inc()
}

// PendingChanged implements roster.Observer.
func (m *MetricsService) PendingChanged(depth int) {
	if m == nil {
		return
	}
	m.pendingDepth.Set(float64(depth))
}

func (m *MetricsService) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// StatusChanged implements roster.StatusHook.
func (m *MetricsService) StatusChanged(change roster.StatusChange) {
	m.RecordStatusChange(string(change.Status))
}

func (m *MetricsService) RecordGroupRequest(result string) {
	if m == nil {
		return
	}
	m.groupRequests.WithLabelValues(result).Inc()
}

func (m *MetricsService) RecordEmailsSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.emailsSent.Add(float64(n))
}
