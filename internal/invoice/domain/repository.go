package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// IncrementSequence bumps the year row (creating it at 1) and returns the new value.
	IncrementSequence(ctx context.Context, db *gorm.DB, year int, at time.Time) (int64, error)
	Insert(ctx context.Context, db *gorm.DB, inv *Invoice, lines []InvoiceLine) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID snowflake.ID) (*Invoice, error)
	ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceLine, error)
}
