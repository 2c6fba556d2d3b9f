package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/paysettle/internal/authorization"
	"github.com/smallbiznis/paysettle/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	paymentservice "github.com/smallbiznis/paysettle/internal/payment/service"
	"github.com/smallbiznis/paysettle/internal/reconciliation/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ManualReconcile settles an intent from operator-supplied provider data,
// bypassing matching. The run, the provider transaction and the intent update
// commit together, so a failure there leaves nothing behind. Failures in the
// later invoice, fulfillment and finalizer steps are recorded as a
// FINALIZER_FAILED item on the committed run.
func (s *Service) ManualReconcile(ctx context.Context, req domain.ManualReconcileRequest) (snowflake.ID, error) {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.Provider = strings.ToUpper(strings.TrimSpace(req.Provider))
	req.Reference = strings.TrimSpace(req.Reference)
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	if err := s.validateManual(req); err != nil {
		return 0, err
	}
	operator := strings.TrimSpace(req.OperatorID)
	if err := s.authorize(ctx, &operator, authorization.ObjectReconciliation, authorization.ActionReconciliationManual); err != nil {
		return 0, err
	}

	ctx = logger.WithOperator(ctx, operator)
	log := logger.WithContext(ctx, s.log).With(zap.String("payment_intent_id", req.IntentID.String()))

	provider := paymentdomain.Provider(req.Provider)
	txnID := req.TransactionID
	if txnID == "" {
		txnID = req.Reference
	}
	paidAt := req.PaidAt.UTC()
	now := s.clock.Now()

	run := domain.Run{
		ID:         s.genID.Generate(),
		Provider:   &provider,
		WindowFrom: paidAt,
		WindowTo:   paidAt,
		OperatorID: &operator,
		Mode:       domain.RunModeManual,
		Summary: datatypes.JSONMap{
			"payment_intent_id": req.IntentID.String(),
			"provider":          string(provider),
			"amount":            req.Amount.StringFixed(4),
			"currency":          req.Currency,
		},
		CreatedAt: now,
	}

	var intent *paymentdomain.PaymentIntent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		intent, err = s.payments.FindIntentForUpdate(ctx, tx, req.IntentID)
		if err != nil {
			return fmt.Errorf("load payment intent: %w", err)
		}
		if intent == nil {
			return fmt.Errorf("%w: %s", paymentdomain.ErrIntentNotFound, req.IntentID)
		}

		if err := s.repo.InsertRun(ctx, tx, &run); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		var ref *string
		if req.Reference != "" {
			ref = &req.Reference
		}
		if _, err := paymentservice.RecordTransactionInTx(ctx, tx, s.payments, s.genID.Generate(), paymentservice.RecordTransactionRequest{
			Provider:              provider,
			ProviderTransactionID: txnID,
			Reference:             req.Reference,
			Status:                paymentdomain.TransactionStatusSuccess,
			Amount:                req.Amount,
			Currency:              req.Currency,
			Channel:               deref(req.Channel),
			PaidAt:                &paidAt,
		}, now); err != nil {
			return fmt.Errorf("record provider transaction: %w", err)
		}

		return s.payments.ApplyManualSettlement(ctx, tx, intent.ID, paymentdomain.ManualSettlement{
			Provider:              provider,
			ProviderTransactionID: txnID,
			Reference:             ref,
			PaidAt:                paidAt,
			Channel:               req.Channel,
			Notes:                 req.Notes,
		}, now)
	})
	if err != nil {
		return 0, err
	}

	item := domain.Item{
		ID:                    s.genID.Generate(),
		RunID:                 run.ID,
		Provider:              provider,
		Reference:             req.Reference,
		PaymentIntentID:       &intent.ID,
		ProviderTransactionID: &txnID,
		Status:                domain.ItemStatusManuallyResolved,
		Reason:                domain.ReasonManualOverride,
		Details:               "manually resolved by " + operator,
	}

	stepErr := s.settle(ctx, *intent, &item)
	if stepErr != nil {
		item.Status = domain.ItemStatusFinalizerFailed
		item.Reason = domain.ReasonFinalizationError
		item.Details = stepErr.Error()
	}
	item.CreatedAt = s.clock.Now()

	if err := s.repo.InsertItems(ctx, s.db, []domain.Item{item}); err != nil {
		return run.ID, errors.Join(stepErr, fmt.Errorf("insert item: %w", err))
	}

	s.metrics.RecordReconciliationRun(ctx, string(domain.RunModeManual), map[string]int{string(item.Status): 1})
	if stepErr != nil {
		log.Warn("manual reconciliation failed to finalize", zap.String("run_id", run.ID.String()), zap.Error(stepErr))
		return run.ID, stepErr
	}
	log.Info("manual reconciliation resolved", zap.String("run_id", run.ID.String()))
	return run.ID, nil
}

// settle issues the invoice, grants document ownership when the purpose
// needs it, then finalizes.
func (s *Service) settle(ctx context.Context, intent paymentdomain.PaymentIntent, item *domain.Item) error {
	inv, err := s.invoices.EnsureForIntent(ctx, intent.ID)
	if err != nil {
		return fmt.Errorf("ensure invoice: %w", err)
	}
	item.InvoiceID = &inv.Invoice.ID

	purpose, err := intent.DecodePurpose()
	if err != nil {
		return err
	}
	if doc, ok := purpose.(paymentdomain.LegalDocumentPurchase); ok {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := s.documents.FulfillLegalDocumentPurchase(ctx, tx, doc.UserID, doc.DocumentID, intent.ID)
			return err
		})
		if err != nil {
			return fmt.Errorf("fulfill legal document: %w", err)
		}
	}

	if _, err := s.finalizer.FinalizeIfNeeded(ctx, intent.ID); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	return nil
}

func (s *Service) validateManual(req domain.ManualReconcileRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+":"+fe.Tag())
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, strings.Join(fields, ","))
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: Amount must be positive", domain.ErrInvalidRequest)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
