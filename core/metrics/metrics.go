package metrics

import (
	"access-sync/core/reconcile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncPasses counts finished passes by overall status.
	SyncPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_sync_passes_total",
			Help: "Total number of reconciliation passes by status",
		},
		[]string{"status"},
	)

	// SyncTypes counts reconciled entity types by outcome.
	SyncTypes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_sync_types_total",
			Help: "Total number of entity type reconciliations by type and status",
		},
		[]string{"type", "status"},
	)

	// SyncRecords counts records by entity type and action (created, updated, unchanged, failed).
	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_sync_records_total",
			Help: "Total number of mirrored records by type and action",
		},
		[]string{"type", "action"},
	)

	// SyncTypeDuration observes how long one entity type took to reconcile.
	SyncTypeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "access_sync_type_duration_seconds",
			Help:    "Duration of one entity type reconciliation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// CircuitBreakerState tracks device breakers (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "access_sync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// DeviceRequests counts device calls by endpoint and result (success, failure, rejected, cancelled).
	DeviceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_sync_device_requests_total",
			Help: "Total number of device requests by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)
)

// Recorder feeds pass and type reports into the collectors above.
type Recorder struct{}

// NewRecorder returns a reconcile.Observer backed by the package collectors.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveType implements reconcile.Observer.
func (Recorder) ObserveType(r *reconcile.TypeReport) {
	t := string(r.Type)
	SyncTypes.WithLabelValues(t, string(r.Status)).Inc()
	if r.DryRun {
		return
	}
	SyncRecords.WithLabelValues(t, "created").Add(float64(r.Created))
	SyncRecords.WithLabelValues(t, "updated").Add(float64(r.Updated))
	SyncRecords.WithLabelValues(t, "unchanged").Add(float64(r.Unchanged))
	SyncRecords.WithLabelValues(t, "failed").Add(float64(r.Failed))
	SyncTypeDuration.WithLabelValues(t).Observe(float64(r.DurationMS) / 1000)
}

// ObservePass implements reconcile.Observer.
func (Recorder) ObservePass(r *reconcile.PassReport) {
	SyncPasses.WithLabelValues(string(r.Status)).Inc()
}
