package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolhub_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "toolhub_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// BorrowTransitions counts borrow request state transitions by resulting status.
	BorrowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolhub_borrow_transitions_total",
		Help: "Total number of borrow request state transitions by resulting status",
	}, []string{"status"})

	// BorrowConflicts counts rejected transitions attempted from the wrong state.
	BorrowConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolhub_borrow_conflicts_total",
		Help: "Total number of borrow transitions rejected due to state conflicts",
	}, []string{"operation"})

	// NotificationsPublished counts notification events published per channel kind.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolhub_notifications_published_total",
		Help: "Total number of notification events published",
	}, []string{"channel_kind", "event_type"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "toolhub_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketChannelConnections is the gauge of connections per channel.
	WebSocketChannelConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "toolhub_websocket_channel_connections",
		Help: "Number of WebSocket connections per notification channel",
	}, []string{"channel"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolhub_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// ImageProcessingDuration records image pipeline latency by stage.
	ImageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "toolhub_image_processing_duration_seconds",
		Help:    "Image processing latency in seconds by pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}

// RecordBorrowTransition increments the transition counter for the resulting status.
func RecordBorrowTransition(status string) {
	BorrowTransitions.WithLabelValues(status).Inc()
}

// RecordBorrowConflict increments the conflict counter for the operation.
func RecordBorrowConflict(operation string) {
	BorrowConflicts.WithLabelValues(operation).Inc()
}

// ChannelMetrics tracks WebSocket channel and connection counts.
type ChannelMetrics struct {
	channelCounts map[string]int
}

// NewChannelMetrics returns a new ChannelMetrics instance.
func NewChannelMetrics() *ChannelMetrics {
	return &ChannelMetrics{
		channelCounts: make(map[string]int),
	}
}

// IncrementChannel increments the connection count for the channel.
func (m *ChannelMetrics) IncrementChannel(channel string) {
	m.channelCounts[channel]++
	WebSocketChannelConnections.WithLabelValues(channel).Inc()
	WebSocketConnectionsTotal.Inc()
}

// DecrementChannel decrements the connection count for the channel.
func (m *ChannelMetrics) DecrementChannel(channel string) {
	if m.channelCounts[channel] > 0 {
		m.channelCounts[channel]--
	}
	WebSocketChannelConnections.WithLabelValues(channel).Dec()
	WebSocketConnectionsTotal.Dec()
}

// GetChannelCount returns the current connection count for the channel.
func (m *ChannelMetrics) GetChannelCount(channel string) int {
	return m.channelCounts[channel]
}

// RecordPublished increments the published-notification counter.
func (*ChannelMetrics) RecordPublished(channelKind, eventType string) {
	NotificationsPublished.WithLabelValues(channelKind, eventType).Inc()
}
