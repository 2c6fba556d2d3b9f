package service

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	"github.com/smallbiznis/paysettle/internal/reconciliation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var windowStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func strp(v string) *string { return &v }

func successIntent(id int64, ref string, amount string, currency string) paymentdomain.PaymentIntent {
	return paymentdomain.PaymentIntent{
		ID:                snowflake.ID(id),
		Provider:          paymentdomain.ProviderA,
		Purpose:           paymentdomain.PurposeProductPurchase,
		Status:            paymentdomain.IntentStatusSuccess,
		Amount:            decimal.RequireFromString(amount),
		Currency:          currency,
		ProviderReference: strp(ref),
		IsFinalized:       true,
		CreatedAt:         windowStart.Add(time.Hour),
		UpdatedAt:         windowStart.Add(time.Hour),
	}
}

func providerTxn(id int64, txnID, ref, amount, currency string) paymentdomain.ProviderTransaction {
	return paymentdomain.ProviderTransaction{
		ID:                    snowflake.ID(id),
		Provider:              paymentdomain.ProviderA,
		ProviderTransactionID: txnID,
		Reference:             strp(ref),
		Status:                paymentdomain.TransactionStatusSuccess,
		Amount:                decimal.RequireFromString(amount),
		Currency:              currency,
		FirstSeenAt:           windowStart.Add(time.Hour),
		LastSeenAt:            windowStart.Add(time.Hour),
	}
}

func TestMatchMissingInternalIntent(t *testing.T) {
	items := match(nil, []paymentdomain.ProviderTransaction{providerTxn(1, "TX-1", "R1", "1000", "KES")})

	require.Len(t, items, 1)
	assert.Equal(t, domain.ItemStatusMissingInternalIntent, items[0].Status)
	assert.Equal(t, domain.ReasonNoPaymentIntentForReference, items[0].Reason)
	assert.Equal(t, "R1", items[0].Reference)
	assert.Nil(t, items[0].PaymentIntentID)
}

func TestMatchCurrencyMismatch(t *testing.T) {
	items := match(
		[]paymentdomain.PaymentIntent{successIntent(10, "R1", "500", "KES")},
		[]paymentdomain.ProviderTransaction{providerTxn(1, "TX-1", "R1", "500", "USD")},
	)

	require.Len(t, items, 1)
	assert.Equal(t, domain.ItemStatusMismatch, items[0].Status)
	assert.Equal(t, domain.ReasonCurrencyMismatch, items[0].Reason)
	require.NotNil(t, items[0].PaymentIntentID)
	assert.Equal(t, snowflake.ID(10), *items[0].PaymentIntentID)
}

func TestMatchDuplicateReferenceWithoutTransaction(t *testing.T) {
	a := successIntent(10, "", "100", "KES")
	b := successIntent(11, "", "100", "KES")
	for _, intent := range []*paymentdomain.PaymentIntent{&a, &b} {
		intent.Provider = paymentdomain.ProviderB
		intent.ProviderReference = strp("direct-" + intent.ID.String())
		intent.ProviderCheckoutReference = strp("R2")
	}

	items := match([]paymentdomain.PaymentIntent{a, b}, nil)

	var dups []domain.Item
	for _, item := range items {
		if item.Status == domain.ItemStatusDuplicate {
			dups = append(dups, item)
		}
	}
	require.Len(t, dups, 2)
	for _, item := range dups {
		assert.Equal(t, "R2", item.Reference)
		assert.Equal(t, domain.ReasonDuplicateReference, item.Reason)
		assert.Contains(t, item.Details, "10")
		assert.Contains(t, item.Details, "11")
	}
	ids := []snowflake.ID{*dups[0].PaymentIntentID, *dups[1].PaymentIntentID}
	assert.ElementsMatch(t, []snowflake.ID{10, 11}, ids)
}

func TestMatchDuplicateCandidatesForTransaction(t *testing.T) {
	a := successIntent(10, "R5", "100", "KES")
	b := successIntent(11, "R6", "100", "KES")
	b.ProviderTransactionID = strp("TX-5")

	items := match(
		[]paymentdomain.PaymentIntent{a, b},
		[]paymentdomain.ProviderTransaction{providerTxn(1, "TX-5", "R5", "100", "KES")},
	)

	require.Len(t, items, 1)
	assert.Equal(t, domain.ItemStatusDuplicate, items[0].Status)
	assert.Equal(t, "colliding payment intents: 11,10", items[0].Details)
}

func TestMatchAmountTolerance(t *testing.T) {
	cases := []struct {
		provider string
		want     domain.ItemStatus
	}{
		{"500.0001", domain.ItemStatusMatched},
		{"499.9999", domain.ItemStatusMatched},
		{"500.00011", domain.ItemStatusMismatch},
		{"500.01", domain.ItemStatusMismatch},
	}
	for _, tc := range cases {
		items := match(
			[]paymentdomain.PaymentIntent{successIntent(10, "R1", "500", "KES")},
			[]paymentdomain.ProviderTransaction{providerTxn(1, "TX-1", "R1", tc.provider, "kes")},
		)
		require.Len(t, items, 1, tc.provider)
		assert.Equal(t, tc.want, items[0].Status, tc.provider)
		if tc.want == domain.ItemStatusMismatch {
			assert.Equal(t, domain.ReasonAmountMismatch, items[0].Reason)
		}
	}
}

func TestMatchStatusClassification(t *testing.T) {
	pending := successIntent(10, "R1", "500", "KES")
	pending.Status = paymentdomain.IntentStatusPending
	unfinalized := successIntent(11, "R2", "500", "KES")
	unfinalized.IsFinalized = false

	items := match(
		[]paymentdomain.PaymentIntent{pending, unfinalized},
		[]paymentdomain.ProviderTransaction{
			providerTxn(1, "TX-1", "R1", "500", "KES"),
			providerTxn(2, "TX-2", "R2", "500", "KES"),
		},
	)

	require.Len(t, items, 2)
	assert.Equal(t, domain.ItemStatusNeedsReview, items[0].Status)
	assert.Equal(t, domain.ReasonStatusMismatch, items[0].Reason)
	assert.Equal(t, domain.ItemStatusFinalizerFailed, items[1].Status)
	assert.Equal(t, domain.ReasonFinalizationError, items[1].Reason)
}

func TestMatchMatchesByTransactionIDAcrossReferences(t *testing.T) {
	intent := successIntent(10, "LOCAL-REF", "500", "KES")
	intent.ProviderTransactionID = strp("TX-9")

	items := match(
		[]paymentdomain.PaymentIntent{intent},
		[]paymentdomain.ProviderTransaction{providerTxn(1, "TX-9", "OTHER-REF", "500", "KES")},
	)

	require.Len(t, items, 1)
	assert.Equal(t, domain.ItemStatusMatched, items[0].Status)
	assert.Equal(t, domain.ReasonNone, items[0].Reason)
}

func TestMatchIsExhaustive(t *testing.T) {
	intents := []paymentdomain.PaymentIntent{
		successIntent(10, "R1", "100", "KES"),
		successIntent(11, "R2", "100", "KES"),
		successIntent(12, "R3", "250", "KES"),
		successIntent(13, "", "100", "KES"),
	}
	failed := successIntent(14, "R9", "100", "KES")
	failed.Status = paymentdomain.IntentStatusFailed
	intents = append(intents, failed)

	txns := []paymentdomain.ProviderTransaction{
		providerTxn(1, "TX-1", "R1", "100", "KES"),
		providerTxn(2, "TX-3", "R3", "200", "KES"),
		providerTxn(3, "TX-7", "R7", "100", "KES"),
	}

	items := match(intents, txns)

	for _, txn := range txns {
		found := false
		for _, item := range items {
			if item.ProviderTransactionID != nil && *item.ProviderTransactionID == txn.ProviderTransactionID {
				found = true
			}
		}
		assert.True(t, found, "transaction %s has no item", txn.ProviderTransactionID)
	}
	for _, intent := range intents {
		if intent.Status != paymentdomain.IntentStatusSuccess {
			continue
		}
		found := false
		for _, item := range items {
			if item.PaymentIntentID != nil && *item.PaymentIntentID == intent.ID {
				found = true
			}
			if strings.Contains(item.Details, intent.ID.String()) {
				found = true
			}
		}
		assert.True(t, found, "intent %s has no item", intent.ID)
	}

	counts := countByStatus(items)
	assert.Equal(t, 1, counts[domain.ItemStatusMatched])
	assert.Equal(t, 1, counts[domain.ItemStatusMismatch])
	assert.Equal(t, 1, counts[domain.ItemStatusMissingInternalIntent])
	assert.Equal(t, 2, counts[domain.ItemStatusMissingProviderTransaction])
}
