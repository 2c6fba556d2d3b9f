package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paysettle/internal/clock"
	"github.com/smallbiznis/paysettle/internal/dbtest"
	"github.com/smallbiznis/paysettle/internal/invoice/domain"
	"github.com/smallbiznis/paysettle/internal/invoice/repository"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/paysettle/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, clk clock.Clock) *Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(Params{
		DB:          dbtest.Open(t),
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.Provide(),
		PaymentRepo: paymentrepository.Provide(),
		Clock:       clk,
	})
}

func TestNextInvoiceNumberIsSequential(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, clock.NewFakeClock(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)))

	seen := map[string]struct{}{}
	for i := 1; i <= 5; i++ {
		number, err := svc.NextInvoiceNumber(ctx)
		require.NoError(t, err)
		_, dup := seen[number]
		assert.False(t, dup, number)
		seen[number] = struct{}{}
	}

	last, err := svc.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-000006", last)
}

func TestNextInvoiceNumberConcurrentCallersGetDistinctNumbers(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))

	const callers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		failed  []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := svc.NextInvoiceNumber(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, err)
				return
			}
			numbers = append(numbers, number)
		}()
	}
	wg.Wait()

	require.Empty(t, failed)
	seen := map[string]struct{}{}
	for _, number := range numbers {
		_, dup := seen[number]
		assert.False(t, dup, number)
		seen[number] = struct{}{}
	}
	assert.Len(t, seen, callers)

	next, err := svc.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-000021", next)
}

func TestNextInvoiceNumberResetsPerYear(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC))
	svc := newTestService(t, clk)

	for i := 0; i < 3; i++ {
		_, err := svc.NextInvoiceNumber(ctx)
		require.NoError(t, err)
	}

	clk.Advance(2 * time.Minute)
	number, err := svc.NextInvoiceNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000001", number)
	assert.Equal(t, int64(2), dbtest.Count(t, svc.db, "invoice_sequences", ""))
}

func TestEnsureForIntentIssuesOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, clock.NewFakeClock(now))

	intent := &paymentdomain.PaymentIntent{
		ID:        77,
		Provider:  paymentdomain.ProviderA,
		Purpose:   paymentdomain.PurposeProductPurchase,
		Status:    paymentdomain.IntentStatusSuccess,
		Amount:    decimal.RequireFromString("1499.50"),
		Currency:  "kes",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, svc.paymentRepo.InsertIntent(ctx, svc.db, intent))

	first, err := svc.EnsureForIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "INV-2025-000001", first.Invoice.InvoiceNumber)
	assert.Equal(t, "KES", first.Invoice.Currency)
	assert.True(t, intent.Amount.Equal(first.Invoice.TotalAmount))

	second, err := svc.EnsureForIntent(ctx, intent.ID)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Invoice.ID, second.Invoice.ID)

	stored, err := svc.paymentRepo.FindIntentByID(ctx, svc.db, intent.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.InvoiceID)
	assert.Equal(t, first.Invoice.ID, *stored.InvoiceID)

	lines, err := svc.repo.ListLines(ctx, svc.db, first.Invoice.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Product purchase", lines[0].Description)
	assert.Equal(t, int64(1), dbtest.Count(t, svc.db, "invoices", ""))
}

func TestEnsureForIntentNotFound(t *testing.T) {
	svc := newTestService(t, clock.NewFakeClock(time.Now()))

	_, err := svc.EnsureForIntent(context.Background(), 1)
	assert.ErrorIs(t, err, paymentdomain.ErrIntentNotFound)
}

func TestCheckTotals(t *testing.T) {
	inv := domain.Invoice{TotalAmount: decimal.NewFromInt(300)}
	lines := []domain.InvoiceLine{
		{Quantity: 2, UnitAmount: decimal.NewFromInt(100), LineTotal: decimal.NewFromInt(200)},
		{Quantity: 1, UnitAmount: decimal.NewFromInt(100), LineTotal: decimal.NewFromInt(100)},
	}
	assert.NoError(t, domain.CheckTotals(inv, lines))

	inv.TotalAmount = decimal.NewFromInt(301)
	assert.ErrorIs(t, domain.CheckTotals(inv, lines), domain.ErrTotalMismatch)

	inv.TotalAmount = decimal.NewFromInt(300)
	lines[0].LineTotal = decimal.NewFromInt(150)
	lines[1].LineTotal = decimal.NewFromInt(150)
	assert.ErrorIs(t, domain.CheckTotals(inv, lines), domain.ErrTotalMismatch)
}
