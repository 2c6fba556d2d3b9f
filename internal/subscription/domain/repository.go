package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindForUpdate(ctx context.Context, db *gorm.DB, owner Owner, productID snowflake.ID) (*Subscription, error)
	Insert(ctx context.Context, db *gorm.DB, owner Owner, sub *Subscription) error
	UpdatePeriod(ctx context.Context, db *gorm.DB, owner Owner, sub *Subscription) error
}
