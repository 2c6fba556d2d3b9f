package service

import (
	"strings"

	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
)

const missingReference = "N/A"

// purchaseReference picks the most specific provider identifier available:
// receipt number, manual reference, checkout reference, provider reference.
func purchaseReference(intent paymentdomain.PaymentIntent) string {
	for _, ref := range []*string{
		intent.ProviderReceiptNumber,
		intent.ManualReference,
		intent.ProviderCheckoutReference,
		intent.ProviderReference,
	} {
		if ref == nil {
			continue
		}
		if v := strings.TrimSpace(*ref); v != "" {
			return v
		}
	}
	return missingReference
}
