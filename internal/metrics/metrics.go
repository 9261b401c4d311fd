package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	namespace = "chat_service"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// WebSocket metrics
	WSConnectionsTotal  prometheus.Counter
	WSActiveConnections prometheus.Gauge
	AuthFailuresTotal   prometheus.Counter

	// Chat metrics
	OnlineUsers           prometheus.Gauge
	ActiveRooms           prometheus.Gauge
	MessagesSentTotal     *prometheus.CounterVec
	EventsHandledTotal    *prometheus.CounterVec
	BroadcastDroppedTotal prometheus.Counter

	// Database pool
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge

	logger *zap.Logger
}

// New creates and registers all metrics with the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, nil)
}

// NewWithRegistry creates and registers all metrics with a custom registry
func NewWithRegistry(registerer prometheus.Registerer, logger *zap.Logger) *Metrics {
	factory := promauto.With(registerer)

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		WSConnectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_connections_total",
				Help:      "Total number of authenticated WebSocket connections",
			},
		),
		WSActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_active_connections",
				Help:      "Number of active WebSocket connections",
			},
		),
		AuthFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total number of rejected connection credentials",
			},
		),
		OnlineUsers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "online_users",
				Help:      "Number of users with at least one open connection",
			},
		),
		ActiveRooms: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rooms_active",
				Help:      "Number of rooms with at least one member",
			},
		),
		MessagesSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Total number of chat messages stored",
			},
			[]string{"kind"},
		),
		EventsHandledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_handled_total",
				Help:      "Total number of inbound events by outcome",
			},
			[]string{"event", "outcome"},
		),
		BroadcastDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcast_dropped_total",
				Help:      "Frames not delivered because the receiver queue was full or closed",
			},
		),
		DBConnectionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_open",
				Help:      "Number of open database connections",
			},
		),
		DBConnectionsInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_in_use",
				Help:      "Number of database connections currently in use",
			},
		),
		DBConnectionsIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_idle",
				Help:      "Number of idle database connections",
			},
		),

		logger: logger,
	}
}

// RecordConnectionOpened counts an authenticated WebSocket connection
func (m *Metrics) RecordConnectionOpened() {
	m.safeExecute("RecordConnectionOpened", func() {
		m.WSConnectionsTotal.Inc()
		m.WSActiveConnections.Inc()
	})
}

func (m *Metrics) RecordConnectionClosed() {
	m.safeExecute("RecordConnectionClosed", func() {
		m.WSActiveConnections.Dec()
	})
}

func (m *Metrics) RecordAuthFailure() {
	m.safeExecute("RecordAuthFailure", func() {
		m.AuthFailuresTotal.Inc()
	})
}

// RecordMessageSent counts a stored message; kind is "room" or "direct".
func (m *Metrics) RecordMessageSent(kind string) {
	m.safeExecute("RecordMessageSent", func() {
		m.MessagesSentTotal.WithLabelValues(kind).Inc()
	})
}

// RecordEvent counts one inbound event. outcome is ok, invalid, not_found or failed.
func (m *Metrics) RecordEvent(name, outcome string) {
	m.safeExecute("RecordEvent", func() {
		m.EventsHandledTotal.WithLabelValues(name, outcome).Inc()
	})
}

func (m *Metrics) RecordDropped(n int) {
	if n <= 0 {
		return
	}
	m.safeExecute("RecordDropped", func() {
		m.BroadcastDroppedTotal.Add(float64(n))
	})
}

// SetHubStats publishes the in-memory registry sizes.
func (m *Metrics) SetHubStats(onlineUsers, rooms int) {
	m.safeExecute("SetHubStats", func() {
		m.OnlineUsers.Set(float64(onlineUsers))
		m.ActiveRooms.Set(float64(rooms))
	})
}

// UpdateDBStats updates database connection pool metrics
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.safeExecute("UpdateDBStats", func() {
		m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
		m.DBConnectionsInUse.Set(float64(stats.InUse))
		m.DBConnectionsIdle.Set(float64(stats.Idle))
	})
}

// safeExecute wraps metric operations with panic recovery
func (m *Metrics) safeExecute(operation string, fn func()) {
	if m == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Panic in metrics operation",
				zap.String("operation", operation),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
