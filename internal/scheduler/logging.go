package scheduler

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/paysettle/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/paysettle/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	"go.uber.org/zap"
)

type jobRun struct {
	runID     string
	batchSize int
	startedAt time.Time
	result    JobResult
}

func (r *jobRun) Attempt() { r.result.Attempted++ }
func (r *jobRun) Succeed() { r.result.Succeeded++ }
func (r *jobRun) Fail()    { r.result.Failed++ }

func (s *Scheduler) newJobRun(job string, batchSize int) *jobRun {
	return &jobRun{
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: s.clock.Now(),
		result:    JobResult{Job: job},
	}
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Debug("scheduler.job.start",
		zap.String("job", run.result.Job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.result.Job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("attempted", run.result.Attempted),
		zap.Int("succeeded", run.result.Succeeded),
		zap.Int("failed", run.result.Failed),
	}
	log := s.logger(ctx)
	if run.result.Failed > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logJobError(ctx context.Context, run *jobRun, err error) {
	s.logger(ctx).Error("scheduler.job.error",
		zap.String("job", run.result.Job),
		zap.String("run_id", run.runID),
		zap.String("reason", obsmetrics.ClassifyReason(err)),
		zap.Error(err),
	)
}

func (s *Scheduler) logItemError(ctx context.Context, run *jobRun, intent paymentdomain.PaymentIntent, err error) {
	fields := append(intentFields(intent),
		zap.String("job", run.result.Job),
		zap.String("run_id", run.runID),
		zap.String("reason", obsmetrics.ClassifyReason(err)),
		zap.Error(err),
	)
	s.logger(ctx).Warn("scheduler.item.failed", fields...)
}

func (s *Scheduler) logItemSkipped(ctx context.Context, run *jobRun, intent paymentdomain.PaymentIntent, err error) {
	fields := append(intentFields(intent),
		zap.String("job", run.result.Job),
		zap.String("run_id", run.runID),
		zap.String("skip_reason", err.Error()),
	)
	s.logger(ctx).Debug("scheduler.item.skipped", fields...)
}
