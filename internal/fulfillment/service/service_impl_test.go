package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/clock"
	"github.com/smallbiznis/paysettle/internal/dbtest"
	registrationdomain "github.com/smallbiznis/paysettle/internal/registration/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	return NewService(Params{Log: zap.NewNop(), GenID: node, Clock: clk}), dbtest.Open(t)
}

func TestCreateUserFromRegistrationIntentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)
	reg := registrationdomain.RegistrationIntent{ID: 44, Email: " Jane@Example.com ", FullName: "Jane Doe"}

	first, err := svc.CreateUserFromRegistrationIntent(ctx, db, reg)
	require.NoError(t, err)
	second, err := svc.CreateUserFromRegistrationIntent(ctx, db, reg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), dbtest.Count(t, db, "users", "registration_intent_id = ? AND email = ?", 44, "jane@example.com"))
}

func TestCompletePublicPurchaseIgnoresRepeats(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	require.NoError(t, svc.CompletePublicPurchase(ctx, db, 1, 2, "RCPT-1"))
	require.NoError(t, svc.CompletePublicPurchase(ctx, db, 1, 2, "RCPT-1"))
	require.NoError(t, svc.CompletePublicPurchase(ctx, db, 1, 2, "RCPT-2"))

	assert.Equal(t, int64(2), dbtest.Count(t, db, "content_purchases", "user_id = ?", 1))
}

func TestFulfillLegalDocumentPurchaseGrantsOnce(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	granted, err := svc.FulfillLegalDocumentPurchase(ctx, db, 1, 9, 100)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = svc.FulfillLegalDocumentPurchase(ctx, db, 1, 9, 101)
	require.NoError(t, err)
	assert.False(t, granted)

	assert.Equal(t, int64(1), dbtest.Count(t, db, "document_ownerships", "user_id = ? AND document_id = ? AND payment_intent_id = ?", 1, 9, 100))
}
