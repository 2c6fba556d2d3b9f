package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/authorization"
	"github.com/smallbiznis/paysettle/internal/clock"
	"github.com/smallbiznis/paysettle/internal/finalizer/domain"
	fulfillmentdomain "github.com/smallbiznis/paysettle/internal/fulfillment/domain"
	"github.com/smallbiznis/paysettle/internal/observability/logger"
	"github.com/smallbiznis/paysettle/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/paysettle/internal/pricing/domain"
	registrationdomain "github.com/smallbiznis/paysettle/internal/registration/domain"
	subscriptiondomain "github.com/smallbiznis/paysettle/internal/subscription/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Payments      paymentdomain.Repository
	Registrations registrationdomain.Repository
	Plans         pricingdomain.Repository
	Subscriptions subscriptiondomain.Service
	Users         fulfillmentdomain.UserProvisioner
	Purchases     fulfillmentdomain.PurchaseCompleter
	Authz         authorization.Service `optional:"true"`
	Metrics       *metrics.Metrics      `optional:"true"`
	Clock         clock.Clock           `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	payments      paymentdomain.Repository
	registrations registrationdomain.Repository
	plans         pricingdomain.Repository
	subscriptions subscriptiondomain.Service
	users         fulfillmentdomain.UserProvisioner
	purchases     fulfillmentdomain.PurchaseCompleter
	authz         authorization.Service
	metrics       *metrics.Metrics
	clock         clock.Clock
	tracer        trace.Tracer
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("finalizer.service"),
		payments:      p.Payments,
		registrations: p.Registrations,
		plans:         p.Plans,
		subscriptions: p.Subscriptions,
		users:         p.Users,
		purchases:     p.Purchases,
		authz:         p.Authz,
		metrics:       p.Metrics,
		clock:         clk,
		tracer:        otel.Tracer("paysettle/finalizer"),
	}
}

// FinalizeIfNeeded applies the intent's business effect exactly once. The
// finalized flag and every effect write share one transaction.
func (s *Service) FinalizeIfNeeded(ctx context.Context, intentID snowflake.ID) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, "finalizer.FinalizeIfNeeded",
		trace.WithAttributes(attribute.String("payment_intent_id", intentID.String())))
	defer span.End()

	started := s.clock.Now()
	unit := &finalizationUnit{svc: s, intentID: intentID, result: domain.Result{IntentID: intentID}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return unit.run(ctx, tx)
	})
	elapsed := s.clock.Now().Sub(started)

	res := unit.result
	log := logger.WithContext(ctx, s.log).With(
		zap.String("payment_intent_id", intentID.String()),
		zap.String("purpose", string(res.Purpose)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalization failed")
		s.metrics.RecordFinalization(ctx, string(res.Purpose), "failed", elapsed)
		log.Warn("finalization failed", zap.Error(err))
		// Nothing committed; the caller sees the pre-call state.
		return domain.Result{IntentID: intentID, Purpose: res.Purpose}, err
	}

	span.SetAttributes(
		attribute.Bool("finalized", res.Finalized),
		attribute.String("skip_reason", string(res.SkipReason)),
	)
	if res.Finalized {
		s.metrics.RecordFinalization(ctx, string(res.Purpose), "finalized", elapsed)
		log.Info("payment intent finalized", zap.Bool("effect_applied", res.EffectApplied), zap.Duration("elapsed", elapsed))
	} else {
		s.metrics.RecordFinalization(ctx, string(res.Purpose), "skipped", elapsed)
		log.Debug("finalization skipped", zap.String("skip_reason", string(res.SkipReason)))
	}
	return res, nil
}

// FinalizePaymentIntent stamps the approval, promotes a PENDING_APPROVAL
// intent to SUCCESS, then finalizes it.
func (s *Service) FinalizePaymentIntent(ctx context.Context, intentID snowflake.ID, approverID *string) (domain.Result, error) {
	if approverID != nil && s.authz != nil {
		if err := s.authz.Authorize(ctx, *approverID, authorization.ObjectPaymentIntent, authorization.ActionPaymentIntentApprove); err != nil {
			return domain.Result{IntentID: intentID}, err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		intent, err := s.payments.FindIntentForUpdate(ctx, tx, intentID)
		if err != nil {
			return err
		}
		if intent == nil {
			return paymentdomain.ErrIntentNotFound
		}

		switch intent.Status {
		case paymentdomain.IntentStatusPendingApproval, paymentdomain.IntentStatusSuccess:
		default:
			return fmt.Errorf("%w: status %s", paymentdomain.ErrNotApprovable, intent.Status)
		}

		now := s.clock.Now()
		if err := s.payments.StampApproval(ctx, tx, intentID, approverID, now); err != nil {
			return err
		}
		if intent.Status == paymentdomain.IntentStatusPendingApproval {
			if _, err := s.payments.PromoteApproved(ctx, tx, intentID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Result{IntentID: intentID}, err
	}

	logger.WithContext(ctx, s.log).Info("payment intent approved",
		zap.String("payment_intent_id", intentID.String()),
		zap.Stringp("approved_by", approverID),
	)
	return s.FinalizeIfNeeded(ctx, intentID)
}
