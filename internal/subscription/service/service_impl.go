package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/clock"
	"github.com/smallbiznis/paysettle/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) CreateOrExtendUserSubscription(ctx context.Context, tx *gorm.DB, userID, productID snowflake.ID, months int) (*domain.Subscription, error) {
	return s.createOrExtend(ctx, tx, domain.UserOwner(userID), productID, months)
}

func (s *Service) CreateOrExtendInstitutionSubscription(ctx context.Context, tx *gorm.DB, institutionID, productID snowflake.ID, months int) (*domain.Subscription, error) {
	return s.createOrExtend(ctx, tx, domain.InstitutionOwner(institutionID), productID, months)
}

func (s *Service) createOrExtend(ctx context.Context, tx *gorm.DB, owner domain.Owner, productID snowflake.ID, months int) (*domain.Subscription, error) {
	now := s.clock.Now()

	current, err := s.repo.FindForUpdate(ctx, tx, owner, productID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	next := domain.Extend(current, now, months)
	if current == nil {
		next.ID = s.genID.Generate()
		next.OwnerID = owner.ID
		next.ProductID = productID
		next.CreatedAt = now
		if err := s.repo.Insert(ctx, tx, owner, &next); err != nil {
			return nil, fmt.Errorf("insert subscription: %w", err)
		}
	} else if err := s.repo.UpdatePeriod(ctx, tx, owner, &next); err != nil {
		return nil, fmt.Errorf("extend subscription: %w", err)
	}

	s.log.Debug("subscription extended",
		zap.String("owner_kind", string(owner.Kind)),
		zap.String("owner_id", owner.ID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("months", months),
		zap.Time("end_at", next.EndAt),
		zap.Bool("created", current == nil),
	)
	return &next, nil
}
