package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/paysettle/pkg/errs"
	"gorm.io/gorm"
)

const (
	HealingOutcomeAttempted = "attempted"
	HealingOutcomeSucceeded = "succeeded"
	HealingOutcomeFailed    = "failed"
)

const (
	TickSkippedOverlap  = "overlap"
	TickSkippedLockHeld = "lock_held"
	TickSkippedDisabled = "disabled"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonNotFound             = "not_found"
	ReasonValidation           = "validation"
	ReasonDomainEffect         = "domain_effect"
	ReasonForbidden            = "forbidden"
	ReasonUnknown              = "unknown"
)

// HealingMetrics captures self-healing scheduler health.
type HealingMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobErrors   *prometheus.CounterVec
	items       *prometheus.CounterVec
	tickSkipped *prometheus.CounterVec
	runLoopLag  prometheus.Observer
}

var (
	healingMetricsOnce sync.Once
	healingMetrics     *HealingMetrics
)

// Healing returns the singleton healing metrics registered on the default registerer.
func Healing() *HealingMetrics {
	return HealingWithConfig(Config{})
}

func HealingWithConfig(cfg Config) *HealingMetrics {
	healingMetricsOnce.Do(func() {
		healingMetrics = newHealingMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return healingMetrics
}

// ResetHealingMetricsForTest resets the singleton so tests can swap registries.
func ResetHealingMetricsForTest() {
	healingMetricsOnce = sync.Once{}
	healingMetrics = nil
}

func newHealingMetrics(registerer prometheus.Registerer, cfg Config) *HealingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "paysettle"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "paysettle_healing_job_runs_total",
		Help:        "Healing job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "paysettle_healing_job_duration_seconds",
		Help:        "Healing job latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "paysettle_healing_job_errors_total",
		Help:        "Healing errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "paysettle_healing_items_total",
		Help:        "Healing items by outcome.",
		ConstLabels: constLabels,
	}, []string{"job", "outcome"})
	tickSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "paysettle_healing_tick_skipped_total",
		Help:        "Healing ticks skipped because a previous tick or another instance was still running.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "paysettle_healing_runloop_lag_seconds",
		Help:        "Lag between the scheduled tick and the actual start.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(jobRuns, jobDuration, jobErrors, items, tickSkipped, runLoopLag)

	return &HealingMetrics{
		jobRuns:     jobRuns,
		jobDuration: jobDuration,
		jobErrors:   jobErrors,
		items:       items,
		tickSkipped: tickSkipped,
		runLoopLag:  runLoopLag,
	}
}

func (m *HealingMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *HealingMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *HealingMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyReason(err)).Inc()
}

// AddItems adds count items for a job outcome.
func (m *HealingMetrics) AddItems(job, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.items.WithLabelValues(job, outcome).Add(float64(count))
}

func (m *HealingMetrics) IncTickSkipped(reason string) {
	if m == nil {
		return
	}
	m.tickSkipped.WithLabelValues(reason).Inc()
}

func (m *HealingMetrics) ObserveRunLoopLag(d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.runLoopLag.Observe(d.Seconds())
}

// ClassifyReason maps errors to low-cardinality reasons for labels and logs.
func ClassifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return ReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") || hasPGCode(err, "40P01") {
		return ReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return ReasonUniqueViolation
	}
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return ReasonNotFound
	case errs.KindValidation:
		return ReasonValidation
	case errs.KindDomainEffect:
		return ReasonDomainEffect
	case errs.KindForbidden:
		return ReasonForbidden
	}
	return ReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
