package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/paysettle/internal/authorization"
	"github.com/smallbiznis/paysettle/internal/clock"
	finalizerdomain "github.com/smallbiznis/paysettle/internal/finalizer/domain"
	fulfillmentdomain "github.com/smallbiznis/paysettle/internal/fulfillment/domain"
	invoicedomain "github.com/smallbiznis/paysettle/internal/invoice/domain"
	"github.com/smallbiznis/paysettle/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	"github.com/smallbiznis/paysettle/internal/reconciliation/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Payments  paymentdomain.Repository
	Invoices  invoicedomain.Service
	Finalizer finalizerdomain.Service
	Documents fulfillmentdomain.LegalDocumentFulfiller
	Authz     authorization.Service `optional:"true"`
	Metrics   *metrics.Metrics      `optional:"true"`
	Clock     clock.Clock           `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	payments  paymentdomain.Repository
	invoices  invoicedomain.Service
	finalizer finalizerdomain.Service
	documents fulfillmentdomain.LegalDocumentFulfiller
	authz     authorization.Service
	metrics   *metrics.Metrics
	clock     clock.Clock
	validate  *validator.Validate
	tracer    trace.Tracer
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("reconciliation.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		payments:  p.Payments,
		invoices:  p.Invoices,
		finalizer: p.Finalizer,
		documents: p.Documents,
		authz:     p.Authz,
		metrics:   p.Metrics,
		clock:     clk,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		tracer:    otel.Tracer("paysettle/reconciliation"),
	}
}

func (s *Service) authorize(ctx context.Context, actor *string, object, action string) error {
	if actor == nil || s.authz == nil {
		return nil
	}
	return s.authz.Authorize(ctx, *actor, object, action)
}
