package service

import (
	"context"
	"fmt"

	"github.com/smallbiznis/paysettle/internal/finalizer/domain"
	pricingdomain "github.com/smallbiznis/paysettle/internal/pricing/domain"
	"gorm.io/gorm"
)

// ResolveSubscriptionMonths sizes an extension from the price plan when one is
// referenced, else from the legacy duration (default 1, never below 1).
func (s *Service) ResolveSubscriptionMonths(ctx context.Context, db *gorm.DB, req domain.MonthsRequest) (int, error) {
	if req.PricePlanID == nil {
		if req.LegacyMonths == nil || *req.LegacyMonths <= 0 {
			return 1, nil
		}
		return *req.LegacyMonths, nil
	}

	plan, err := s.plans.FindByID(ctx, db, *req.PricePlanID)
	if err != nil {
		return 0, fmt.Errorf("load price plan: %w", err)
	}
	if plan == nil {
		return 0, fmt.Errorf("%w: %s", pricingdomain.ErrPlanNotFound, *req.PricePlanID)
	}
	if plan.ProductID != req.ProductID {
		return 0, fmt.Errorf("%w: plan %s belongs to product %s, not %s",
			pricingdomain.ErrPlanProductMismatch, plan.ID, plan.ProductID, req.ProductID)
	}
	if !plan.IsActive {
		return 0, fmt.Errorf("%w: %s", pricingdomain.ErrPlanInactive, plan.ID)
	}
	if !plan.EffectiveAt(s.clock.Now()) {
		return 0, fmt.Errorf("%w: %s", pricingdomain.ErrPlanNotEffective, plan.ID)
	}
	return plan.BillingPeriod.Months(), nil
}
