package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtendCreatesFromNow(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	next := Extend(nil, now, 3)

	assert.Equal(t, now, next.StartAt)
	assert.Equal(t, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC), next.EndAt)
	assert.Equal(t, SubscriptionStatusActive, next.Status)
	assert.False(t, next.IsTrial)
}

func TestExtendStacksOnActive(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	current := &Subscription{ID: 7, Status: SubscriptionStatusActive, StartAt: start, EndAt: end, IsTrial: true}

	next := Extend(current, now, 12)

	assert.Equal(t, current.ID, next.ID)
	assert.Equal(t, start, next.StartAt)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), next.EndAt)
	assert.False(t, next.IsTrial)
}

func TestExtendRestartsLapsedOrInactive(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	lapsed := &Subscription{Status: SubscriptionStatusActive, StartAt: start, EndAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	canceled := &Subscription{Status: SubscriptionStatusCanceled, StartAt: start, EndAt: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)}

	for _, current := range []*Subscription{lapsed, canceled} {
		next := Extend(current, now, 1)
		assert.Equal(t, now, next.StartAt)
		assert.Equal(t, time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC), next.EndAt)
		assert.Equal(t, SubscriptionStatusActive, next.Status)
	}
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	jan31 := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC), AddMonths(jan31, 1))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), AddMonths(time.Date(2023, 11, 29, 0, 0, 0, 0, time.UTC), 3))
	assert.Equal(t, time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC), AddMonths(jan31, 12))
}
