package guard

import (
	"errors"
	"time"

	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
)

var (
	ErrIntentNotSuccess       = errors.New("payment_intent_not_success")
	ErrIntentAlreadyFinalized = errors.New("payment_intent_already_finalized")
	ErrIntentTooRecent        = errors.New("payment_intent_too_recent")
	ErrNotDocumentPurchase    = errors.New("payment_intent_not_document_purchase")
	ErrMissingDocumentOwner   = errors.New("payment_intent_missing_document_owner")
)

// EnsureFinalizationHealable rechecks a row selected for finalization healing.
func EnsureFinalizationHealable(intent paymentdomain.PaymentIntent, now time.Time, minAge time.Duration) error {
	if intent.Status != paymentdomain.IntentStatusSuccess {
		return ErrIntentNotSuccess
	}
	if intent.IsFinalized {
		return ErrIntentAlreadyFinalized
	}
	return ensureAged(intent, now, minAge)
}

// EnsureFulfillmentHealable rechecks a row selected for document fulfillment healing.
func EnsureFulfillmentHealable(intent paymentdomain.PaymentIntent, now time.Time, minAge time.Duration) error {
	if intent.Status != paymentdomain.IntentStatusSuccess {
		return ErrIntentNotSuccess
	}
	if intent.Purpose != paymentdomain.PurposeLegalDocumentPurchase {
		return ErrNotDocumentPurchase
	}
	if intent.UserID == nil || intent.LegalDocumentID == nil {
		return ErrMissingDocumentOwner
	}
	return ensureAged(intent, now, minAge)
}

func ensureAged(intent paymentdomain.PaymentIntent, now time.Time, minAge time.Duration) error {
	if now.Sub(intent.UpdatedAt) < minAge {
		return ErrIntentTooRecent
	}
	return nil
}
