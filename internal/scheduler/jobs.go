package scheduler

import (
	"context"
	"fmt"

	"github.com/smallbiznis/paysettle/internal/authorization"
	"github.com/smallbiznis/paysettle/internal/config"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	reconciliationdomain "github.com/smallbiznis/paysettle/internal/reconciliation/domain"
	"github.com/smallbiznis/paysettle/internal/scheduler/guard"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// JobResult counts the items one job touched.
type JobResult struct {
	Job       string
	Attempted int
	Succeeded int
	Failed    int
}

// healFinalization finalizes SUCCESS intents that never got their effect applied.
func (s *Scheduler) healFinalization(ctx context.Context, run *jobRun, cfg config.HealingConfig) error {
	now := s.clock.Now()
	intents, err := s.payments.ListUnfinalized(ctx, s.db, now.Add(-cfg.MinAge), cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list unfinalized: %w", err)
	}

	for _, intent := range intents {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := guard.EnsureFinalizationHealable(intent, now, cfg.MinAge); err != nil {
			s.logItemSkipped(ctx, run, intent, err)
			continue
		}
		run.Attempt()
		err := s.withItemContext(ctx, func(itemCtx context.Context) error {
			_, err := s.finalizer.FinalizeIfNeeded(itemCtx, intent.ID)
			return err
		})
		if err != nil {
			s.itemFailed(ctx, run, intent, err)
			continue
		}
		run.Succeed()
	}
	return nil
}

// healFulfillment grants ownership for paid legal documents with no ownership record.
func (s *Scheduler) healFulfillment(ctx context.Context, run *jobRun, cfg config.HealingConfig) error {
	now := s.clock.Now()
	intents, err := s.payments.ListUnfulfilledDocumentPurchases(ctx, s.db, now.Add(-cfg.MinAge), cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list unfulfilled document purchases: %w", err)
	}

	for _, intent := range intents {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := guard.EnsureFulfillmentHealable(intent, now, cfg.MinAge); err != nil {
			s.logItemSkipped(ctx, run, intent, err)
			continue
		}
		run.Attempt()
		err := s.withItemContext(ctx, func(itemCtx context.Context) error {
			return s.db.WithContext(itemCtx).Transaction(func(tx *gorm.DB) error {
				_, err := s.documents.FulfillLegalDocumentPurchase(itemCtx, tx, *intent.UserID, *intent.LegalDocumentID, intent.ID)
				return err
			})
		})
		if err != nil {
			s.itemFailed(ctx, run, intent, err)
			continue
		}
		run.Succeed()
	}
	return nil
}

// autoReconcile runs an AUTO reconciliation over the trailing lookback window.
func (s *Scheduler) autoReconcile(ctx context.Context, run *jobRun, cfg config.ReconciliationConfig) error {
	now := s.clock.Now()
	actor := authorization.ActorSystem
	run.Attempt()
	summary, err := s.reconciliation.RunReconciliation(ctx, reconciliationdomain.RunRequest{
		From:       now.Add(-cfg.Lookback),
		To:         now,
		OperatorID: &actor,
		Mode:       reconciliationdomain.RunModeAuto,
	})
	if err != nil {
		run.Fail()
		return err
	}
	run.Succeed()
	s.logger(ctx).Info("scheduler.reconciliation.completed",
		zap.String("run_id", run.runID),
		zap.String("reconciliation_run_id", summary.RunID.String()),
		zap.Int("items", summary.Total),
	)
	return nil
}

func (s *Scheduler) itemFailed(ctx context.Context, run *jobRun, intent paymentdomain.PaymentIntent, err error) {
	run.Fail()
	s.metrics.IncJobError(run.result.Job, err)
	s.logItemError(ctx, run, intent, err)
}

// withItemContext detaches the item from loop cancellation so a shutdown
// never interrupts an item halfway. The item is still bounded by itemTimeout;
// the loops check ctx before starting the next one.
func (s *Scheduler) withItemContext(ctx context.Context, fn func(context.Context) error) error {
	itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), itemTimeout)
	defer cancel()
	return fn(itemCtx)
}

func intentFields(intent paymentdomain.PaymentIntent) []zap.Field {
	return []zap.Field{
		zap.String("payment_intent_id", intent.ID.String()),
		zap.String("purpose", string(intent.Purpose)),
		zap.Time("updated_at", intent.UpdatedAt),
	}
}
