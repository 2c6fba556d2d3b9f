package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/clock"
	"github.com/smallbiznis/paysettle/internal/invoice/domain"
	"github.com/smallbiznis/paysettle/internal/invoice/format"
	"github.com/smallbiznis/paysettle/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	"github.com/smallbiznis/paysettle/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	PaymentRepo paymentdomain.Repository
	Metrics     *metrics.Metrics `optional:"true"`
	Clock       clock.Clock      `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	paymentRepo paymentdomain.Repository
	metrics     *metrics.Metrics
	clock       clock.Clock
	template    string
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		paymentRepo: p.PaymentRepo,
		metrics:     p.Metrics,
		clock:       clk,
		template:    format.DefaultInvoiceNumberTemplate,
	}
}

// EnsureForIntent issues the intent's invoice unless one already exists.
func (s *Service) EnsureForIntent(ctx context.Context, paymentIntentID snowflake.ID) (*domain.EnsureResult, error) {
	var result *domain.EnsureResult
	err := db.RunSerializable(ctx, s.db, func(tx *gorm.DB) error {
		res, err := s.EnsureForIntentInTx(ctx, tx, paymentIntentID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Created {
		s.metrics.RecordInvoiceIssued(ctx, result.Invoice.Currency)
	}
	return result, nil
}

func (s *Service) EnsureForIntentInTx(ctx context.Context, tx *gorm.DB, paymentIntentID snowflake.ID) (*domain.EnsureResult, error) {
	intent, err := s.paymentRepo.FindIntentForUpdate(ctx, tx, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("load payment intent: %w", err)
	}
	if intent == nil {
		return nil, paymentdomain.ErrIntentNotFound
	}

	if intent.InvoiceID != nil {
		existing, err := s.repo.FindByID(ctx, tx, *intent.InvoiceID)
		if err != nil {
			return nil, fmt.Errorf("load invoice: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvoiceNotFound, *intent.InvoiceID)
		}
		return &domain.EnsureResult{Invoice: *existing}, nil
	}

	now := s.clock.Now()

	// An invoice may exist without the intent link when a previous attach lost a race.
	existing, err := s.repo.FindByPaymentIntent(ctx, tx, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}
	if existing != nil {
		if _, err := s.paymentRepo.AttachInvoice(ctx, tx, intent.ID, existing.ID, now); err != nil {
			return nil, fmt.Errorf("attach invoice: %w", err)
		}
		return &domain.EnsureResult{Invoice: *existing}, nil
	}

	number, err := s.NextInvoiceNumberInTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	inv := domain.Invoice{
		ID:              s.genID.Generate(),
		InvoiceNumber:   number,
		PaymentIntentID: intent.ID,
		Currency:        strings.ToUpper(strings.TrimSpace(intent.Currency)),
		TotalAmount:     intent.Amount,
		Status:          domain.InvoiceStatusIssued,
		IssuedAt:        now,
		CreatedAt:       now,
	}
	lines := []domain.InvoiceLine{{
		ID:          s.genID.Generate(),
		InvoiceID:   inv.ID,
		Description: lineDescription(intent.Purpose),
		Quantity:    1,
		UnitAmount:  intent.Amount,
		LineTotal:   intent.Amount,
		CreatedAt:   now,
	}}
	if err := domain.CheckTotals(inv, lines); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, tx, &inv, lines); err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}
	if _, err := s.paymentRepo.AttachInvoice(ctx, tx, intent.ID, inv.ID, now); err != nil {
		return nil, fmt.Errorf("attach invoice: %w", err)
	}

	s.log.Info("invoice issued",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("payment_intent_id", intent.ID.String()),
	)
	return &domain.EnsureResult{Invoice: inv, Created: true}, nil
}

var lineDescriptions = map[paymentdomain.PurposeKind]string{
	paymentdomain.PurposeSignupFee:               "Signup fee",
	paymentdomain.PurposeProductPurchase:         "Product purchase",
	paymentdomain.PurposeIndividualSubscription:  "Individual subscription",
	paymentdomain.PurposeInstitutionSubscription: "Institution subscription",
	paymentdomain.PurposeLegalDocumentPurchase:   "Legal document purchase",
}

func lineDescription(kind paymentdomain.PurposeKind) string {
	if d, ok := lineDescriptions[kind]; ok {
		return d
	}
	return "Payment"
}
