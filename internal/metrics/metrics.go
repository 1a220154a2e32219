package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the enforcement pipeline.
// All methods are nil-safe so components can run without a registry.
type Metrics struct {
	FlagsCreated         *prometheus.CounterVec
	BlocksCreated        *prometheus.CounterVec
	BlocksLifted         *prometheus.CounterVec
	GateDecisions        *prometheus.CounterVec
	JobsProcessed        *prometheus.CounterVec
	JobDuration          *prometheus.HistogramVec
	NotificationFailures prometheus.Counter
}

// New registers all metrics with the default Prometheus registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers all metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FlagsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "career_policy_flags_created_total",
			Help: "Total number of flags created, by severity",
		}, []string{"severity"}),
		BlocksCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "career_policy_blocks_created_total",
			Help: "Total number of user blocks created, by block type and reconcile mode",
		}, []string{"block_type", "mode"}),
		BlocksLifted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "career_policy_blocks_lifted_total",
			Help: "Total number of blocks that left the active state, by resulting status",
		}, []string{"status"}),
		GateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "career_policy_gate_decisions_total",
			Help: "Job portal access gate decisions (allowed, denied, fail_open)",
		}, []string{"decision"}),
		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "career_policy_jobs_processed_total",
			Help: "Background jobs processed, by job type and outcome",
		}, []string{"job_type", "outcome"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "career_policy_job_duration_seconds",
			Help:    "Duration of background job handlers",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"job_type"}),
		NotificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "career_policy_notification_failures_total",
			Help: "Admin notification deliveries that failed and were dropped",
		}),
	}
}

func (m *Metrics) IncrementFlagCreated(severity string) {
	if m == nil {
		return
	}
	m.FlagsCreated.WithLabelValues(severity).Inc()
}

func (m *Metrics) IncrementBlockCreated(blockType, mode string) {
	if m == nil {
		return
	}
	m.BlocksCreated.WithLabelValues(blockType, mode).Inc()
}

// IncrementBlockLifted records a block moving to unblocked or expired.
func (m *Metrics) IncrementBlockLifted(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BlocksLifted.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) IncrementGateDecision(decision string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(decision).Inc()
}

// ObserveJob records a finished job attempt.
// Call with time.Now() taken before the handler ran.
func (m *Metrics) ObserveJob(jobType, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(jobType, outcome).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementNotificationFailure() {
	if m == nil {
		return
	}
	m.NotificationFailures.Inc()
}
