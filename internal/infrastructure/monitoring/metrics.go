package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sides of a worker channel.
const (
	SideCreator = "creator"
	SideContext = "context"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Worker metrics
	WorkersActive  *prometheus.GaugeVec
	WorkersSpawned *prometheus.CounterVec
	WorkersFailed  *prometheus.CounterVec

	// Message metrics
	Messages        *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec
	DecodeErrors    *prometheus.CounterVec
	HandlerErrors   *prometheus.CounterVec

	// Capability metrics
	CapabilityCalls    *prometheus.CounterVec
	CapabilityDuration *prometheus.HistogramVec

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON API
type Snapshot struct {
	WorkersActive   int64 `json:"workers_active"`
	WorkersSpawned  int64 `json:"workers_spawned"`
	MessagesSent    int64 `json:"messages_sent"`
	MessagesDropped int64 `json:"messages_dropped"`
	TotalRequests   int64 `json:"total_requests"`
	TotalErrors     int64 `json:"total_errors"`
}

// NewMetrics creates a metrics collector registered with reg. A nil reg
// uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsworker_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsworker_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Worker metrics
		WorkersActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jsworker_workers_active",
				Help: "Number of running isolated contexts",
			},
			[]string{"mode"},
		),
		WorkersSpawned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsworker_workers_spawned_total",
				Help: "Total number of spawned isolated contexts",
			},
			[]string{"mode"},
		),
		WorkersFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsworker_workers_failed_total",
				Help: "Total number of contexts that stopped with an error",
			},
			[]string{"mode"},
		),

		// Message metrics
		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsworker_messages_total",
				Help: "Total number of protocol messages",
			},
			[]string{"side", "direction"},
		),
		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsworker_messages_dropped_total",
				Help: "Messages dropped because no handler was registered",
			},
			[]string{"side"},
		),
		DecodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsworker_decode_errors_total",
				Help: "Frames or payloads that failed to decode",
			},
			[]string{"side"},
		),
		HandlerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsworker_handler_errors_total",
				Help: "Message handlers that threw or panicked",
			},
			[]string{"side"},
		),

		// Capability metrics
		CapabilityCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsworker_capability_calls_total",
				Help: "Capability calls served for contexts",
			},
			[]string{"name", "status"},
		),
		CapabilityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsworker_capability_duration_seconds",
				Help:    "Capability call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"name"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// WorkerStarted records a spawned context
func (m *Metrics) WorkerStarted(mode string) {
	if m == nil {
		return
	}
	m.WorkersSpawned.WithLabelValues(mode).Inc()
	m.WorkersActive.WithLabelValues(mode).Inc()

	m.mu.Lock()
	m.snapshot.WorkersActive++
	m.snapshot.WorkersSpawned++
	m.mu.Unlock()
}

// WorkerStopped records a context that stopped, failed when err is set
func (m *Metrics) WorkerStopped(mode string, err error) {
	if m == nil {
		return
	}
	m.WorkersActive.WithLabelValues(mode).Dec()
	if err != nil {
		m.WorkersFailed.WithLabelValues(mode).Inc()
	}

	m.mu.Lock()
	m.snapshot.WorkersActive--
	m.mu.Unlock()
}

// MessageSent records an outbound message
func (m *Metrics) MessageSent(side string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(side, "out").Inc()

	m.mu.Lock()
	m.snapshot.MessagesSent++
	m.mu.Unlock()
}

// MessageReceived records an inbound message
func (m *Metrics) MessageReceived(side string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(side, "in").Inc()
}

// MessageDropped records a message without a handler
func (m *Metrics) MessageDropped(side string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(side).Inc()

	m.mu.Lock()
	m.snapshot.MessagesDropped++
	m.mu.Unlock()
}

// DecodeError records a frame or payload that failed to decode
func (m *Metrics) DecodeError(side string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(side).Inc()
}

// HandlerError records a failing message handler
func (m *Metrics) HandlerError(side string) {
	if m == nil {
		return
	}
	m.HandlerErrors.WithLabelValues(side).Inc()
}

// RecordCapabilityCall records a served capability call
func (m *Metrics) RecordCapabilityCall(name, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CapabilityCalls.WithLabelValues(name, status).Inc()
	m.CapabilityDuration.WithLabelValues(name).Observe(duration.Seconds())
}
