// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesReceived   prometheus.Counter
	MessagesDropped    prometheus.Counter
	RepliesSent        prometheus.Counter
	ReplyFailures      prometheus.Counter
	AttendanceLookups  prometheus.Counter
	AttendanceFailures prometheus.Counter
	StoreWrites        prometheus.Counter
	StoreWriteFailures prometheus.Counter
	Reconnects         prometheus.Counter

	// Labeled counters
	StoreReads *prometheus.CounterVec // outcome: hit | miss | unavailable

	// Histograms (seconds)
	AttendanceDuration prometheus.Observer
	HandleDuration     prometheus.Observer
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "attendbot_messages_received_total", Help: "Inbound chat messages accepted for handling"})
		MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "attendbot_messages_dropped_total", Help: "Inbound messages discarded (self-sent echoes)"})
		RepliesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "attendbot_replies_sent_total", Help: "Outbound replies delivered to the chat transport"})
		ReplyFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "attendbot_reply_failures_total", Help: "Outbound replies the transport rejected"})
		AttendanceLookups = promauto.NewCounter(prometheus.CounterOpts{Name: "attendbot_attendance_lookups_total", Help: "Attendance API calls issued"})
		AttendanceFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "attendbot_attendance_failures_total", Help: "Attendance API calls that failed or were rejected"})
		StoreWrites = promauto.NewCounter(prometheus.CounterOpts{Name: "attendbot_store_writes_total", Help: "Record store writes"})
		StoreWriteFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "attendbot_store_write_failures_total", Help: "Record store writes that failed"})
		Reconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "attendbot_transport_reconnects_total", Help: "Chat transport reconnect cycles"})
		StoreReads = promauto.NewCounterVec(prometheus.CounterOpts{Name: "attendbot_store_reads_total", Help: "Record store reads by outcome"}, []string{"outcome"})
		AttendanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "attendbot_attendance_duration_seconds", Help: "Attendance API call duration seconds", Buckets: prometheus.DefBuckets})
		HandleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "attendbot_handle_duration_seconds", Help: "Inbound message handling duration seconds", Buckets: prometheus.DefBuckets})
	})
}

// IncStoreRead records one store read outcome: "hit", "miss" or "unavailable".
func IncStoreRead(outcome string) {
	if StoreReads != nil {
		StoreReads.WithLabelValues(outcome).Inc()
	}
}

// Inc increments c if metrics have been initialized.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
