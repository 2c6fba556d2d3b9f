package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paysettle/internal/clock"
	"github.com/smallbiznis/paysettle/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("payment.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

// RecordTransactionRequest is the ingestion shape for a provider's view of a transaction.
type RecordTransactionRequest struct {
	Provider              domain.Provider
	ProviderTransactionID string
	Reference             string
	Status                domain.TransactionStatus
	Amount                decimal.Decimal
	Currency              string
	Channel               string
	PaidAt                *time.Time
}

// RecordProviderTransaction upserts by (provider, provider transaction id).
// first_seen_at is kept from the first sighting.
func (s *Service) RecordProviderTransaction(ctx context.Context, req RecordTransactionRequest) (*domain.ProviderTransaction, error) {
	return RecordTransactionInTx(ctx, s.db, s.repo, s.genID.Generate(), req, s.clock.Now())
}

// RecordTransactionInTx is RecordProviderTransaction bound to an existing transaction.
func RecordTransactionInTx(ctx context.Context, tx *gorm.DB, repo domain.Repository, id snowflake.ID, req RecordTransactionRequest, now time.Time) (*domain.ProviderTransaction, error) {
	if !req.Provider.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidProvider, req.Provider)
	}
	txnID := strings.TrimSpace(req.ProviderTransactionID)
	if txnID == "" {
		return nil, domain.ErrInvalidTransactionID
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, domain.ErrInvalidCurrency
	}
	if req.Amount.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	status := req.Status
	if status == "" {
		status = domain.TransactionStatusPending
	}

	txn := &domain.ProviderTransaction{
		ID:                    id,
		Provider:              req.Provider,
		ProviderTransactionID: txnID,
		Reference:             optional(req.Reference),
		Status:                status,
		Amount:                req.Amount,
		Currency:              currency,
		Channel:               optional(req.Channel),
		PaidAt:                utcPtr(req.PaidAt),
		FirstSeenAt:           now,
		LastSeenAt:            now,
	}
	if err := repo.UpsertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	stored, err := repo.FindTransaction(ctx, tx, txn.Provider, txn.ProviderTransactionID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("provider transaction %s/%s vanished after upsert", txn.Provider, txn.ProviderTransactionID)
	}
	return stored, nil
}

func (s *Service) GetIntent(ctx context.Context, id snowflake.ID) (*domain.PaymentIntent, error) {
	intent, err := s.repo.FindIntentByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, domain.ErrIntentNotFound
	}
	return intent, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
