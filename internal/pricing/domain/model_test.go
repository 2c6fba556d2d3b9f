package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBillingPeriodMonths(t *testing.T) {
	assert.Equal(t, 1, BillingPeriodMonthly.Months())
	assert.Equal(t, 12, BillingPeriodAnnual.Months())
	assert.Equal(t, 1, BillingPeriod("WEEKLY").Months())
}

func TestEffectiveAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	from := now.Add(-24 * time.Hour)
	to := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	assert.True(t, PricePlan{}.EffectiveAt(now))
	assert.True(t, PricePlan{EffectiveFrom: &from, EffectiveTo: &to}.EffectiveAt(now))
	assert.False(t, PricePlan{EffectiveFrom: &to}.EffectiveAt(now))
	assert.False(t, PricePlan{EffectiveTo: &past}.EffectiveAt(now))
}
