package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// IntentWindowQuery is a coarse SQL prefilter; callers re-check the exact
// effective timestamp in memory.
type IntentWindowQuery struct {
	From     time.Time
	To       time.Time
	Provider *Provider
}

type TransactionWindowQuery struct {
	From     time.Time
	To       time.Time
	Provider *Provider
}

// ManualSettlement are the provider fields an operator forces onto an intent.
type ManualSettlement struct {
	Provider              Provider
	ProviderTransactionID string
	Reference             *string
	PaidAt                time.Time
	Channel               *string
	Notes                 *string
}

type Repository interface {
	InsertIntent(ctx context.Context, db *gorm.DB, intent *PaymentIntent) error
	FindIntentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentIntent, error)
	// FindIntentForUpdate row-locks the intent where the dialect supports it.
	FindIntentForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentIntent, error)
	// MarkFinalized flips is_finalized false->true and reports whether this call won.
	MarkFinalized(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	StampApproval(ctx context.Context, db *gorm.DB, id snowflake.ID, approverID *string, at time.Time) error
	PromoteApproved(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ApplyManualSettlement(ctx context.Context, db *gorm.DB, id snowflake.ID, s ManualSettlement, at time.Time) error
	// AttachInvoice sets invoice_id only while it is still null.
	AttachInvoice(ctx context.Context, db *gorm.DB, id, invoiceID snowflake.ID, at time.Time) (bool, error)

	ListIntentsInWindow(ctx context.Context, db *gorm.DB, q IntentWindowQuery) ([]PaymentIntent, error)
	ListUnfinalized(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]PaymentIntent, error)
	ListUnfulfilledDocumentPurchases(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]PaymentIntent, error)

	UpsertTransaction(ctx context.Context, db *gorm.DB, txn *ProviderTransaction) error
	FindTransaction(ctx context.Context, db *gorm.DB, provider Provider, providerTransactionID string) (*ProviderTransaction, error)
	ListTransactionsInWindow(ctx context.Context, db *gorm.DB, q TransactionWindowQuery) ([]ProviderTransaction, error)
}
