package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/clock"
	"github.com/smallbiznis/paysettle/internal/config"
	finalizerdomain "github.com/smallbiznis/paysettle/internal/finalizer/domain"
	fulfillmentdomain "github.com/smallbiznis/paysettle/internal/fulfillment/domain"
	obsmetrics "github.com/smallbiznis/paysettle/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	reconciliationdomain "github.com/smallbiznis/paysettle/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobHealFinalization   = "heal_finalization"
	JobHealFulfillment    = "heal_fulfillment"
	JobAutoReconciliation = "auto_reconciliation"

	LockKey = "paysettle:scheduler:healing"

	jobTimeout  = 2 * time.Minute
	itemTimeout = 30 * time.Second
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Runtime        *config.RuntimeConfigHolder
	Payments       paymentdomain.Repository
	Finalizer      finalizerdomain.Service
	Documents      fulfillmentdomain.LegalDocumentFulfiller
	Reconciliation reconciliationdomain.Service
	Locker         Locker                     `optional:"true"`
	Metrics        *obsmetrics.HealingMetrics `optional:"true"`
	Clock          clock.Clock                `optional:"true"`
}

// Scheduler re-drives finalization and document fulfillment for payments
// whose original processing was interrupted.
type Scheduler struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	runtime        *config.RuntimeConfigHolder
	payments       paymentdomain.Repository
	finalizer      finalizerdomain.Service
	documents      fulfillmentdomain.LegalDocumentFulfiller
	reconciliation reconciliationdomain.Service
	locker         Locker
	metrics        *obsmetrics.HealingMetrics
	clock          clock.Clock

	running atomic.Bool

	mu          sync.Mutex
	lastAutoRun time.Time
}

// TickResult reports what a single tick did. Skipped is one of the
// obsmetrics.TickSkipped* reasons when no job ran.
type TickResult struct {
	Skipped string
	Jobs    []JobResult
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Runtime == nil || p.Payments == nil ||
		p.Finalizer == nil || p.Documents == nil || p.Reconciliation == nil {
		return nil, ErrInvalidConfig
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	m := p.Metrics
	if m == nil {
		m = obsmetrics.Healing()
	}
	return &Scheduler{
		db:             p.DB,
		log:            p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		genID:          p.GenID,
		runtime:        p.Runtime,
		payments:       p.Payments,
		finalizer:      p.Finalizer,
		documents:      p.Documents,
		reconciliation: p.Reconciliation,
		locker:         p.Locker,
		metrics:        m,
		clock:          clk,
	}, nil
}

// RunForever waits the initial delay, then ticks until ctx is cancelled.
// The interval is re-read after every tick so reloads take effect.
func (s *Scheduler) RunForever(ctx context.Context) {
	if delay := s.runtime.Get().Healing.InitialDelay; delay > 0 {
		if !sleep(ctx, delay) {
			return
		}
	}

	nextRun := time.Now()
	for {
		if lag := time.Since(nextRun); lag > 0 {
			s.metrics.ObserveRunLoopLag(lag)
		}
		s.Tick(ctx)

		interval := s.runtime.Get().Healing.Interval
		nextRun = time.Now().Add(interval)
		if !sleep(ctx, interval) {
			return
		}
	}
}

// Tick runs every due job once. Overlapping ticks, ticks while another
// instance holds the lock, and ticks while healing is disabled are skipped.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	cfg := s.runtime.Get()
	if !cfg.Healing.Enabled {
		s.metrics.IncTickSkipped(obsmetrics.TickSkippedDisabled)
		return TickResult{Skipped: obsmetrics.TickSkippedDisabled}
	}

	if !s.running.CompareAndSwap(false, true) {
		s.metrics.IncTickSkipped(obsmetrics.TickSkippedOverlap)
		s.log.Debug("scheduler.tick.skipped", zap.String("reason", obsmetrics.TickSkippedOverlap))
		return TickResult{Skipped: obsmetrics.TickSkippedOverlap}
	}
	defer s.running.Store(false)

	var lock Lock
	if s.locker != nil {
		var err error
		lock, err = s.locker.Obtain(ctx, LockKey)
		if err != nil {
			s.metrics.IncTickSkipped(obsmetrics.TickSkippedLockHeld)
			if !errors.Is(err, ErrLockHeld) {
				s.log.Warn("scheduler.lock.failed", zap.Error(err))
			}
			return TickResult{Skipped: obsmetrics.TickSkippedLockHeld}
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("scheduler.lock.release_failed", zap.Error(err))
			}
		}()
	}

	jobs := []tickJob{
		{name: JobHealFinalization, batchSize: cfg.Healing.BatchSize, fn: func(ctx context.Context, run *jobRun) error {
			return s.healFinalization(ctx, run, cfg.Healing)
		}},
		{name: JobHealFulfillment, batchSize: cfg.Healing.BatchSize, fn: func(ctx context.Context, run *jobRun) error {
			return s.healFulfillment(ctx, run, cfg.Healing)
		}},
	}
	if s.autoReconciliationDue(cfg.Reconciliation) {
		jobs = append(jobs, tickJob{name: JobAutoReconciliation, batchSize: 1, fn: func(ctx context.Context, run *jobRun) error {
			return s.autoReconcile(ctx, run, cfg.Reconciliation)
		}})
	}

	result := TickResult{}
	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if lock != nil && i > 0 {
			if err := lock.Refresh(ctx); err != nil {
				s.log.Warn("scheduler.lock.lost", zap.String("next_job", job.name), zap.Error(err))
				break
			}
		}
		result.Jobs = append(result.Jobs, s.runJob(ctx, job.name, job.batchSize, job.fn))
	}
	return result
}

type tickJob struct {
	name      string
	batchSize int
	fn        func(ctx context.Context, run *jobRun) error
}

func (s *Scheduler) runJob(parent context.Context, name string, batchSize int, fn func(ctx context.Context, run *jobRun) error) JobResult {
	ctx, cancel := context.WithTimeout(parent, jobTimeout)
	defer cancel()

	run := s.newJobRun(name, batchSize)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(name)

	err := fn(ctx, run)

	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(run.startedAt))
	s.metrics.AddItems(name, obsmetrics.HealingOutcomeAttempted, run.result.Attempted)
	s.metrics.AddItems(name, obsmetrics.HealingOutcomeSucceeded, run.result.Succeeded)
	s.metrics.AddItems(name, obsmetrics.HealingOutcomeFailed, run.result.Failed)
	if err != nil {
		s.metrics.IncJobError(name, err)
		s.logJobError(ctx, run, err)
	}
	s.logJobFinish(ctx, run)
	return run.result
}

func (s *Scheduler) autoReconciliationDue(cfg config.ReconciliationConfig) bool {
	if !cfg.AutoEnabled {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if !s.lastAutoRun.IsZero() && now.Sub(s.lastAutoRun) < cfg.Interval {
		return false
	}
	s.lastAutoRun = now
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
