package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/finalizer/domain"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	registrationdomain "github.com/smallbiznis/paysettle/internal/registration/domain"
	"github.com/smallbiznis/paysettle/pkg/errs"
	"gorm.io/gorm"
)

// finalizationUnit is one attempt at finalizing one intent inside one transaction.
type finalizationUnit struct {
	svc      *Service
	intentID snowflake.ID
	result   domain.Result
}

func (u *finalizationUnit) run(ctx context.Context, tx *gorm.DB) error {
	s := u.svc

	intent, err := s.payments.FindIntentForUpdate(ctx, tx, u.intentID)
	if err != nil {
		return fmt.Errorf("load payment intent: %w", err)
	}
	if intent == nil {
		return fmt.Errorf("%w: %s", paymentdomain.ErrIntentNotFound, u.intentID)
	}
	u.result.Purpose = intent.Purpose

	if intent.Status != paymentdomain.IntentStatusSuccess {
		u.result.SkipReason = domain.SkipNotSuccess
		return nil
	}
	if intent.IsFinalized {
		u.result.SkipReason = domain.SkipAlreadyFinalized
		return nil
	}

	won, err := s.payments.MarkFinalized(ctx, tx, intent.ID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("mark finalized: %w", err)
	}
	if !won {
		u.result.SkipReason = domain.SkipFinalizedConcurrently
		return nil
	}

	purpose, err := intent.DecodePurpose()
	if err != nil {
		return err
	}

	applied, err := u.apply(ctx, tx, *intent, purpose)
	if err != nil {
		return err
	}

	u.result.Finalized = true
	u.result.EffectApplied = applied
	return nil
}

func (u *finalizationUnit) apply(ctx context.Context, tx *gorm.DB, intent paymentdomain.PaymentIntent, purpose paymentdomain.Purpose) (bool, error) {
	s := u.svc

	switch p := purpose.(type) {
	case paymentdomain.SignupFee:
		reg, err := s.registrations.FindByID(ctx, tx, p.RegistrationIntentID)
		if err != nil {
			return false, fmt.Errorf("load registration intent: %w", err)
		}
		if reg == nil {
			return false, fmt.Errorf("%w: %s", registrationdomain.ErrRegistrationNotFound, p.RegistrationIntentID)
		}
		if err := s.registrations.MarkPaymentCompleted(ctx, tx, reg.ID, s.clock.Now()); err != nil {
			return false, fmt.Errorf("mark registration paid: %w", err)
		}
		if _, err := s.users.CreateUserFromRegistrationIntent(ctx, tx, *reg); err != nil {
			return false, effectErr("create user", err)
		}
		return true, nil

	case paymentdomain.ProductPurchase:
		if err := s.purchases.CompletePublicPurchase(ctx, tx, p.UserID, p.ProductID, purchaseReference(intent)); err != nil {
			return false, effectErr("complete purchase", err)
		}
		return true, nil

	case paymentdomain.IndividualSubscription:
		months, err := s.ResolveSubscriptionMonths(ctx, tx, domain.MonthsRequest{
			ProductID:    p.ProductID,
			PricePlanID:  p.PricePlanID,
			LegacyMonths: p.LegacyMonths,
		})
		if err != nil {
			return false, err
		}
		if _, err := s.subscriptions.CreateOrExtendUserSubscription(ctx, tx, p.UserID, p.ProductID, months); err != nil {
			return false, effectErr("extend user subscription", err)
		}
		return true, nil

	case paymentdomain.InstitutionSubscription:
		months, err := s.ResolveSubscriptionMonths(ctx, tx, domain.MonthsRequest{
			ProductID:    p.ProductID,
			PricePlanID:  p.PricePlanID,
			LegacyMonths: p.LegacyMonths,
		})
		if err != nil {
			return false, err
		}
		if _, err := s.subscriptions.CreateOrExtendInstitutionSubscription(ctx, tx, p.InstitutionID, p.ProductID, months); err != nil {
			return false, effectErr("extend institution subscription", err)
		}
		return true, nil

	case paymentdomain.LegalDocumentPurchase:
		// Ownership is granted by the fulfillment path.
		return false, nil

	case paymentdomain.UnknownPurpose:
		return false, nil
	}

	return false, fmt.Errorf("unhandled purpose %T", purpose)
}

func effectErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", errs.ErrDomainEffect, op, err)
}
