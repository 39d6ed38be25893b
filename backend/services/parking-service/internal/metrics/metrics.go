package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	sensorEvents      *prometheus.CounterVec
	reservations      *prometheus.CounterVec
	sessionsClosed    *prometheus.CounterVec
	fees              prometheus.Histogram
	notifyFailures    *prometheus.CounterVec
}

// New builds collectors on a private registry so tests can create many instances.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parking_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		sensorEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_sensor_events_total",
			Help: "Sensor events handled by reported status and outcome.",
		}, []string{"status", "outcome"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_reservations_total",
			Help: "Reservation attempts by operation and result.",
		}, []string{"operation", "result"}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_sessions_closed_total",
			Help: "Closed parking sessions by trigger.",
		}, []string{"trigger"}),
		fees: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "parking_session_fee",
			Help:    "Fees charged when sessions close.",
			Buckets: []float64{0, 20, 40, 60, 100, 200, 500},
		}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_notify_failures_total",
			Help: "Slot update notifications that could not be delivered.",
		}, []string{"channel"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.sensorEvents,
		m.reservations,
		m.sessionsClosed,
		m.fees,
		m.notifyFailures,
	)
	return m
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// WrapHandler records count and latency for route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SensorEvent(status, outcome string) {
	if m == nil {
		return
	}
	m.sensorEvents.WithLabelValues(status, outcome).Inc()
}

func (m *Metrics) Reservation(operation, result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) SessionClosed(trigger string, fee float64) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(trigger).Inc()
	m.fees.Observe(fee)
}

func (m *Metrics) NotifyFailure(channel string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(channel).Inc()
}
