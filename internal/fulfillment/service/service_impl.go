package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/clock"
	"github.com/smallbiznis/paysettle/internal/fulfillment/domain"
	registrationdomain "github.com/smallbiznis/paysettle/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock `optional:"true"`
}

// Service is the gorm-backed default for every fulfillment collaborator.
type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		log:   p.Log.Named("fulfillment.service"),
		genID: p.GenID,
		clock: clk,
	}
}

func (s *Service) CreateUserFromRegistrationIntent(ctx context.Context, tx *gorm.DB, intent registrationdomain.RegistrationIntent) (snowflake.ID, error) {
	var existing domain.User
	err := tx.WithContext(ctx).Where("registration_intent_id = ?", intent.ID).Take(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("lookup user: %w", err)
	}

	regID := intent.ID
	user := domain.User{
		ID:                   s.genID.Generate(),
		Email:                strings.ToLower(strings.TrimSpace(intent.Email)),
		FullName:             strings.TrimSpace(intent.FullName),
		RegistrationIntentID: &regID,
		CreatedAt:            s.clock.Now(),
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user provisioned",
		zap.String("user_id", user.ID.String()),
		zap.String("registration_intent_id", intent.ID.String()),
	)
	return user.ID, nil
}

func (s *Service) CompletePublicPurchase(ctx context.Context, tx *gorm.DB, userID, productID snowflake.ID, reference string) error {
	purchase := domain.ContentPurchase{
		ID:        s.genID.Generate(),
		UserID:    userID,
		ProductID: productID,
		Reference: reference,
		CreatedAt: s.clock.Now(),
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}, {Name: "reference"}},
		DoNothing: true,
	}).Create(&purchase).Error
	if err != nil {
		return fmt.Errorf("complete purchase: %w", err)
	}
	return nil
}

func (s *Service) FulfillLegalDocumentPurchase(ctx context.Context, tx *gorm.DB, userID, documentID, paymentIntentID snowflake.ID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&domain.DocumentOwnership{}).
		Where("user_id = ? AND document_id = ?", userID, documentID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("lookup ownership: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	intentID := paymentIntentID
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "document_id"}},
		DoNothing: true,
	}).Create(&domain.DocumentOwnership{
		ID:              s.genID.Generate(),
		UserID:          userID,
		DocumentID:      documentID,
		PaymentIntentID: &intentID,
		CreatedAt:       s.clock.Now(),
	})
	if res.Error != nil {
		return false, fmt.Errorf("grant ownership: %w", res.Error)
	}

	granted := res.RowsAffected == 1
	if granted {
		s.log.Info("document ownership granted",
			zap.String("user_id", userID.String()),
			zap.String("document_id", documentID.String()),
			zap.String("payment_intent_id", paymentIntentID.String()),
		)
	}
	return granted, nil
}
