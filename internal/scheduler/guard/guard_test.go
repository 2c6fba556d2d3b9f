package guard

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	"github.com/stretchr/testify/assert"
)

func TestEnsureFinalizationHealable(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	base := paymentdomain.PaymentIntent{
		Status:    paymentdomain.IntentStatusSuccess,
		UpdatedAt: now.Add(-10 * time.Minute),
	}

	assert.NoError(t, EnsureFinalizationHealable(base, now, 5*time.Minute))

	pending := base
	pending.Status = paymentdomain.IntentStatusPending
	assert.ErrorIs(t, EnsureFinalizationHealable(pending, now, 5*time.Minute), ErrIntentNotSuccess)

	done := base
	done.IsFinalized = true
	assert.ErrorIs(t, EnsureFinalizationHealable(done, now, 5*time.Minute), ErrIntentAlreadyFinalized)

	assert.ErrorIs(t, EnsureFinalizationHealable(base, now, time.Hour), ErrIntentTooRecent)
}

func TestEnsureFulfillmentHealable(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	user, doc := snowflake.ID(1), snowflake.ID(2)
	base := paymentdomain.PaymentIntent{
		Status:          paymentdomain.IntentStatusSuccess,
		Purpose:         paymentdomain.PurposeLegalDocumentPurchase,
		UserID:          &user,
		LegalDocumentID: &doc,
		IsFinalized:     true,
		UpdatedAt:       now.Add(-10 * time.Minute),
	}

	assert.NoError(t, EnsureFulfillmentHealable(base, now, 5*time.Minute))

	product := base
	product.Purpose = paymentdomain.PurposeProductPurchase
	assert.ErrorIs(t, EnsureFulfillmentHealable(product, now, 5*time.Minute), ErrNotDocumentPurchase)

	orphan := base
	orphan.LegalDocumentID = nil
	assert.ErrorIs(t, EnsureFulfillmentHealable(orphan, now, 5*time.Minute), ErrMissingDocumentOwner)
}
