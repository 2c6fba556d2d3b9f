package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/paysettle/internal/authorization"
	"github.com/smallbiznis/paysettle/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	"github.com/smallbiznis/paysettle/internal/reconciliation/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type intentPredicate func(paymentdomain.PaymentIntent) bool

type txnPredicate func(paymentdomain.ProviderTransaction) bool

func intentPredicates(req domain.RunRequest) []intentPredicate {
	preds := []intentPredicate{
		func(i paymentdomain.PaymentIntent) bool { return inWindow(i.EffectiveAt(), req.From, req.To) },
	}
	if req.Provider != nil {
		p := *req.Provider
		preds = append(preds, func(i paymentdomain.PaymentIntent) bool { return i.Provider == p })
	}
	return preds
}

func txnPredicates(req domain.RunRequest) []txnPredicate {
	preds := []txnPredicate{
		func(t paymentdomain.ProviderTransaction) bool { return inWindow(t.EffectiveAt(), req.From, req.To) },
	}
	if req.Provider != nil {
		p := *req.Provider
		preds = append(preds, func(t paymentdomain.ProviderTransaction) bool { return t.Provider == p })
	}
	return preds
}

func inWindow(at, from, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}

func filter[T any, P ~func(T) bool](rows []T, preds []P) []T {
	out := rows[:0:0]
next:
	for _, row := range rows {
		for _, keep := range preds {
			if !keep(row) {
				continue next
			}
		}
		out = append(out, row)
	}
	return out
}

// RunReconciliation classifies the window and persists one run with its items.
// Discrepancies are reported as items; only store failures return an error.
func (s *Service) RunReconciliation(ctx context.Context, req domain.RunRequest) (*domain.RunSummary, error) {
	req.From, req.To = req.From.UTC(), req.To.UTC()
	if req.From.IsZero() || req.To.IsZero() || !req.From.Before(req.To) {
		return nil, fmt.Errorf("%w: [%s, %s)", domain.ErrInvalidWindow, req.From.Format(time.RFC3339), req.To.Format(time.RFC3339))
	}
	if req.Provider != nil && !req.Provider.Valid() {
		return nil, fmt.Errorf("%w: %q", paymentdomain.ErrInvalidProvider, *req.Provider)
	}
	if req.Mode == "" {
		req.Mode = domain.RunModeAuto
	}
	if err := s.authorize(ctx, req.OperatorID, authorization.ObjectReconciliation, authorization.ActionReconciliationRun); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "reconciliation.RunReconciliation", trace.WithAttributes(
		attribute.String("mode", string(req.Mode)),
		attribute.String("window_from", req.From.Format(time.RFC3339)),
		attribute.String("window_to", req.To.Format(time.RFC3339)),
	))
	defer span.End()

	intents, err := s.payments.ListIntentsInWindow(ctx, s.db, paymentdomain.IntentWindowQuery{From: req.From, To: req.To, Provider: req.Provider})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load intents")
		return nil, fmt.Errorf("load payment intents: %w", err)
	}
	txns, err := s.payments.ListTransactionsInWindow(ctx, s.db, paymentdomain.TransactionWindowQuery{From: req.From, To: req.To, Provider: req.Provider})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load transactions")
		return nil, fmt.Errorf("load provider transactions: %w", err)
	}

	intents = filter(intents, intentPredicates(req))
	txns = filter(txns, txnPredicates(req))

	items := match(intents, txns)
	counts := countByStatus(items)

	now := s.clock.Now()
	run := domain.Run{
		ID:         s.genID.Generate(),
		Provider:   req.Provider,
		WindowFrom: req.From,
		WindowTo:   req.To,
		OperatorID: req.OperatorID,
		Mode:       req.Mode,
		Summary:    summaryOf(counts, len(intents), len(txns)),
		CreatedAt:  now,
	}
	for i := range items {
		items[i].ID = s.genID.Generate()
		items[i].RunID = run.ID
		items[i].CreatedAt = now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertRun(ctx, tx, &run); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return fmt.Errorf("insert items: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist run")
		return nil, err
	}

	metricCounts := make(map[string]int, len(counts))
	for status, n := range counts {
		metricCounts[string(status)] = n
	}
	s.metrics.RecordReconciliationRun(ctx, string(req.Mode), metricCounts)

	logger.WithContext(ctx, s.log).Info("reconciliation run completed",
		zap.String("run_id", run.ID.String()),
		zap.String("mode", string(req.Mode)),
		zap.Int("intents", len(intents)),
		zap.Int("transactions", len(txns)),
		zap.Int("items", len(items)),
	)
	return &domain.RunSummary{RunID: run.ID, Counts: counts, Total: len(items)}, nil
}

func summaryOf(counts map[domain.ItemStatus]int, intents, txns int) datatypes.JSONMap {
	byStatus := make(map[string]any, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
	}
	return datatypes.JSONMap{
		"counts":       byStatus,
		"intents":      intents,
		"transactions": txns,
	}
}
