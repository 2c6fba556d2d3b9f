package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/pkg/errs"
	"gorm.io/gorm"
)

// Service creates or extends subscriptions inside the caller's transaction.
type Service interface {
	CreateOrExtendUserSubscription(ctx context.Context, tx *gorm.DB, userID, productID snowflake.ID, months int) (*Subscription, error)
	CreateOrExtendInstitutionSubscription(ctx context.Context, tx *gorm.DB, institutionID, productID snowflake.ID, months int) (*Subscription, error)
}

var ErrUnknownOwner = errs.New(errs.KindValidation, "subscription_owner_unknown")
