// Package domain describes the outcome of finalizing a payment intent.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	"gorm.io/gorm"
)

type SkipReason string

const (
	SkipNone                  SkipReason = ""
	SkipNotSuccess            SkipReason = "not_success"
	SkipAlreadyFinalized      SkipReason = "already_finalized"
	SkipFinalizedConcurrently SkipReason = "finalized_concurrently"
)

// Result reports what a single finalization call did.
type Result struct {
	IntentID      snowflake.ID              `json:"intent_id"`
	Purpose       paymentdomain.PurposeKind `json:"purpose"`
	Finalized     bool                      `json:"finalized"`
	EffectApplied bool                      `json:"effect_applied"`
	SkipReason    SkipReason                `json:"skip_reason,omitempty"`
}

// MonthsRequest carries the inputs used to size a subscription extension.
type MonthsRequest struct {
	ProductID    snowflake.ID
	PricePlanID  *snowflake.ID
	LegacyMonths *int
}

type Service interface {
	FinalizeIfNeeded(ctx context.Context, intentID snowflake.ID) (Result, error)
	FinalizePaymentIntent(ctx context.Context, intentID snowflake.ID, approverID *string) (Result, error)
	ResolveSubscriptionMonths(ctx context.Context, db *gorm.DB, req MonthsRequest) (int, error)
}
