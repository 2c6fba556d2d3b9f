package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	NextInvoiceNumber(ctx context.Context) (string, error)
	NextInvoiceNumberInTx(ctx context.Context, tx *gorm.DB) (string, error)
	EnsureForIntent(ctx context.Context, paymentIntentID snowflake.ID) (*EnsureResult, error)
	EnsureForIntentInTx(ctx context.Context, tx *gorm.DB, paymentIntentID snowflake.ID) (*EnsureResult, error)
}

type EnsureResult struct {
	Invoice Invoice
	Created bool
}
