package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/pkg/errs"
	"gorm.io/gorm"
)

type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "MONTHLY"
	BillingPeriodAnnual  BillingPeriod = "ANNUAL"
)

// Months maps the period to a subscription duration. Unknown periods count as one month.
func (p BillingPeriod) Months() int {
	switch p {
	case BillingPeriodAnnual:
		return 12
	case BillingPeriodMonthly:
		return 1
	default:
		return 1
	}
}

type PricePlan struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	ProductID     snowflake.ID  `gorm:"not null;index" json:"product_id"`
	Name          string        `gorm:"type:text" json:"name"`
	BillingPeriod BillingPeriod `gorm:"type:text;not null" json:"billing_period"`
	IsActive      bool          `gorm:"not null;default:true" json:"is_active"`
	EffectiveFrom *time.Time    `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time    `json:"effective_to,omitempty"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
}

func (PricePlan) TableName() string { return "pricing_plans" }

// EffectiveAt reports whether now is inside [effective_from, effective_to].
// Open bounds are unbounded.
func (p PricePlan) EffectiveAt(now time.Time) bool {
	if p.EffectiveFrom != nil && now.Before(*p.EffectiveFrom) {
		return false
	}
	if p.EffectiveTo != nil && now.After(*p.EffectiveTo) {
		return false
	}
	return true
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PricePlan, error)
}

var (
	ErrPlanNotFound        = errs.New(errs.KindNotFound, "price_plan_not_found")
	ErrPlanProductMismatch = errs.New(errs.KindValidation, "price_plan_product_mismatch")
	ErrPlanInactive        = errs.New(errs.KindValidation, "price_plan_inactive")
	ErrPlanNotEffective    = errs.New(errs.KindValidation, "price_plan_not_effective")
)
