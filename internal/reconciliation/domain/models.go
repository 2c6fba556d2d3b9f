// Package domain holds reconciliation runs and the items they classify.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	"gorm.io/datatypes"
)

type RunMode string

const (
	RunModeAuto   RunMode = "AUTO"
	RunModeManual RunMode = "MANUAL"
)

type ItemStatus string

const (
	ItemStatusMatched                    ItemStatus = "MATCHED"
	ItemStatusNeedsReview                ItemStatus = "NEEDS_REVIEW"
	ItemStatusMismatch                   ItemStatus = "MISMATCH"
	ItemStatusMissingInternalIntent      ItemStatus = "MISSING_INTERNAL_INTENT"
	ItemStatusMissingProviderTransaction ItemStatus = "MISSING_PROVIDER_TRANSACTION"
	ItemStatusDuplicate                  ItemStatus = "DUPLICATE"
	ItemStatusFinalizerFailed            ItemStatus = "FINALIZER_FAILED"
	ItemStatusManuallyResolved           ItemStatus = "MANUALLY_RESOLVED"
)

// ItemStatuses lists every status in report order.
var ItemStatuses = []ItemStatus{
	ItemStatusMatched,
	ItemStatusNeedsReview,
	ItemStatusMismatch,
	ItemStatusMissingInternalIntent,
	ItemStatusMissingProviderTransaction,
	ItemStatusDuplicate,
	ItemStatusFinalizerFailed,
	ItemStatusManuallyResolved,
}

func (s ItemStatus) Valid() bool {
	for _, v := range ItemStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type Reason string

const (
	ReasonAmountMismatch                 Reason = "AMOUNT_MISMATCH"
	ReasonCurrencyMismatch               Reason = "CURRENCY_MISMATCH"
	ReasonStatusMismatch                 Reason = "STATUS_MISMATCH"
	ReasonNoPaymentIntentForReference    Reason = "NO_PAYMENT_INTENT_FOR_REFERENCE"
	ReasonNoProviderTransactionForIntent Reason = "NO_PROVIDER_TRANSACTION_FOR_INTENT"
	ReasonDuplicateReference             Reason = "DUPLICATE_REFERENCE"
	ReasonFinalizationError              Reason = "FINALIZATION_ERROR"
	ReasonManualOverride                 Reason = "MANUAL_OVERRIDE"
	ReasonNone                           Reason = "NONE"
)

// Run is immutable once written.
type Run struct {
	ID         snowflake.ID            `gorm:"primaryKey" json:"id"`
	Provider   *paymentdomain.Provider `gorm:"type:text" json:"provider,omitempty"`
	WindowFrom time.Time               `gorm:"not null" json:"window_from"`
	WindowTo   time.Time               `gorm:"not null" json:"window_to"`
	OperatorID *string                 `gorm:"type:text" json:"operator_id,omitempty"`
	Mode       RunMode                 `gorm:"type:text;not null" json:"mode"`
	Summary    datatypes.JSONMap       `gorm:"type:jsonb;not null;default:'{}'" json:"summary"`
	CreatedAt  time.Time               `gorm:"not null" json:"created_at"`
}

func (Run) TableName() string { return "reconciliation_runs" }

// Item is append-only. Later runs add rows and never edit earlier ones.
type Item struct {
	ID                    snowflake.ID           `gorm:"primaryKey" json:"id"`
	RunID                 snowflake.ID           `gorm:"not null;index" json:"run_id"`
	Provider              paymentdomain.Provider `gorm:"type:text;not null" json:"provider"`
	Reference             string                 `gorm:"type:text;not null" json:"reference"`
	PaymentIntentID       *snowflake.ID          `json:"payment_intent_id,omitempty"`
	ProviderTransactionID *string                `gorm:"type:text" json:"provider_transaction_id,omitempty"`
	InvoiceID             *snowflake.ID          `json:"invoice_id,omitempty"`
	Status                ItemStatus             `gorm:"type:text;not null" json:"status"`
	Reason                Reason                 `gorm:"type:text;not null" json:"reason"`
	Details               string                 `gorm:"type:text;not null" json:"details"`
	CreatedAt             time.Time              `gorm:"not null" json:"created_at"`
}

func (Item) TableName() string { return "reconciliation_items" }
