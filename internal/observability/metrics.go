// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger session metrics
	EventsProcessed  *prometheus.CounterVec
	EventErrors      *prometheus.CounterVec
	SessionUp        prometheus.Gauge
	Reconnects       prometheus.Counter
	MonitorDisabled  prometheus.Gauge
	EventLatency     prometheus.Histogram

	// Reconciliation metrics
	TransfersApplied   prometheus.Counter
	TransfersDuplicate prometheus.Counter
	InstrumentsCreated prometheus.Counter
	HoldersTracked     *prometheus.GaugeVec

	// Distribution metrics
	CouponRuns    *prometheus.CounterVec
	CouponsPaid   prometheus.Counter
	CouponsFailed prometheus.Counter

	// Notification metrics
	NotificationsSent *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "bond_tracker"
	}

	return &Metrics{
		// Ledger session metrics
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "events_processed_total",
			Help:      "Total number of ledger transaction events processed by type",
		}, []string{"tx_type"}),
		EventErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "event_errors_total",
			Help:      "Total number of event handling errors by stage",
		}, []string{"stage"}),
		SessionUp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "session_up",
			Help:      "1 when a ledger session is established, 0 otherwise",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "reconnects_total",
			Help:      "Total number of session reconnection attempts",
		}),
		MonitorDisabled: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "disabled",
			Help:      "1 when monitoring is permanently disabled after reconnect exhaustion",
		}),
		EventLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "event_handling_seconds",
			Help:      "Time spent handling one transaction event",
			Buckets:   prometheus.DefBuckets,
		}),

		// Reconciliation metrics
		TransfersApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "transfers_applied_total",
			Help:      "Total number of transfers applied to holder balances",
		}),
		TransfersDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "transfers_duplicate_total",
			Help:      "Total number of transfers skipped as already applied",
		}),
		InstrumentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "instruments_autocreated_total",
			Help:      "Total number of placeholder instruments created from issuance events",
		}),
		HoldersTracked: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "holders_tracked",
			Help:      "Current number of holder records per instrument",
		}, []string{"instrument"}),

		// Distribution metrics
		CouponRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coupon",
			Name:      "runs_total",
			Help:      "Total number of coupon runs by status",
		}, []string{"status"}),
		CouponsPaid: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coupon",
			Name:      "payments_total",
			Help:      "Total number of successful coupon payments",
		}),
		CouponsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "coupon",
			Name:      "payment_failures_total",
			Help:      "Total number of failed coupon payments",
		}),

		// Notification metrics
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "events_total",
			Help:      "Total number of notification events emitted by kind",
		}, []string{"kind"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventProcessed increments the processed-events counter for a
// transaction type.
func RecordEventProcessed(txType string) {
	DefaultMetrics.EventsProcessed.WithLabelValues(txType).Inc()
}

// RecordEventError records an event handling error at a pipeline stage.
func RecordEventError(stage string) {
	DefaultMetrics.EventErrors.WithLabelValues(stage).Inc()
}

// RecordReconnect increments the reconnect counter.
func RecordReconnect() {
	DefaultMetrics.Reconnects.Inc()
}

// SetSessionUp updates the session gauge.
func SetSessionUp(up bool) {
	if up {
		DefaultMetrics.SessionUp.Set(1)
	} else {
		DefaultMetrics.SessionUp.Set(0)
	}
}

// SetMonitorDisabled marks monitoring as permanently disabled.
func SetMonitorDisabled() {
	DefaultMetrics.MonitorDisabled.Set(1)
}

// RecordTransferApplied increments the applied-transfers counter.
func RecordTransferApplied() {
	DefaultMetrics.TransfersApplied.Inc()
}

// RecordTransferDuplicate increments the duplicate-transfers counter.
func RecordTransferDuplicate() {
	DefaultMetrics.TransfersDuplicate.Inc()
}

// RecordInstrumentCreated increments the auto-created instrument counter.
func RecordInstrumentCreated() {
	DefaultMetrics.InstrumentsCreated.Inc()
}

// SetHoldersTracked updates the holder gauge for an instrument.
func SetHoldersTracked(instrumentID string, count int) {
	DefaultMetrics.HoldersTracked.WithLabelValues(instrumentID).Set(float64(count))
}

// RecordCouponRun records one coupon run outcome.
func RecordCouponRun(status string) {
	DefaultMetrics.CouponRuns.WithLabelValues(status).Inc()
}

// RecordCouponPaid increments the successful-payment counter.
func RecordCouponPaid() {
	DefaultMetrics.CouponsPaid.Inc()
}

// RecordCouponFailed increments the failed-payment counter.
func RecordCouponFailed() {
	DefaultMetrics.CouponsFailed.Inc()
}

// RecordNotification increments the notification counter for a kind.
func RecordNotification(kind string) {
	DefaultMetrics.NotificationsSent.WithLabelValues(kind).Inc()
}
