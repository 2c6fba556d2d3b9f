package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idPtr(v int64) *snowflake.ID {
	id := snowflake.ID(v)
	return &id
}

func strPtr(v string) *string { return &v }

func TestDecodePurposeVariants(t *testing.T) {
	months := 3
	cases := []struct {
		name   string
		intent PaymentIntent
		want   Purpose
	}{
		{
			name:   "signup",
			intent: PaymentIntent{Purpose: PurposeSignupFee, RegistrationIntentID: idPtr(7)},
			want:   SignupFee{RegistrationIntentID: 7},
		},
		{
			name:   "product",
			intent: PaymentIntent{Purpose: PurposeProductPurchase, UserID: idPtr(1), ContentProductID: idPtr(2)},
			want:   ProductPurchase{UserID: 1, ProductID: 2},
		},
		{
			name:   "individual",
			intent: PaymentIntent{Purpose: PurposeIndividualSubscription, UserID: idPtr(1), ContentProductID: idPtr(2), PricePlanID: idPtr(9), DurationMonths: &months},
			want:   IndividualSubscription{UserID: 1, ProductID: 2, PricePlanID: idPtr(9), LegacyMonths: &months},
		},
		{
			name:   "institution",
			intent: PaymentIntent{Purpose: PurposeInstitutionSubscription, InstitutionID: idPtr(4), ContentProductID: idPtr(2)},
			want:   InstitutionSubscription{InstitutionID: 4, ProductID: 2},
		},
		{
			name:   "legal_document",
			intent: PaymentIntent{Purpose: PurposeLegalDocumentPurchase, UserID: idPtr(1), LegalDocumentID: idPtr(5)},
			want:   LegalDocumentPurchase{UserID: 1, DocumentID: 5},
		},
		{
			name:   "unknown",
			intent: PaymentIntent{Purpose: PurposeKind("GIFT_CARD")},
			want:   UnknownPurpose{Raw: "GIFT_CARD"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.intent.DecodePurpose()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.intent.Purpose, got.Kind())
		})
	}
}

func TestDecodePurposeMissingField(t *testing.T) {
	cases := []PaymentIntent{
		{Purpose: PurposeSignupFee},
		{Purpose: PurposeProductPurchase, UserID: idPtr(1)},
		{Purpose: PurposeIndividualSubscription, ContentProductID: idPtr(2)},
		{Purpose: PurposeInstitutionSubscription, ContentProductID: idPtr(2)},
		{Purpose: PurposeLegalDocumentPurchase, UserID: idPtr(1)},
	}

	for _, intent := range cases {
		t.Run(string(intent.Purpose), func(t *testing.T) {
			_, err := intent.DecodePurpose()
			assert.ErrorIs(t, err, ErrMissingCorrelation)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestReferenceUsesCheckoutForCheckoutProvider(t *testing.T) {
	direct := PaymentIntent{Provider: ProviderA, ProviderReference: strPtr("R1"), ProviderCheckoutReference: strPtr("C1")}
	checkout := PaymentIntent{Provider: ProviderB, ProviderReference: strPtr("R1"), ProviderCheckoutReference: strPtr("C1")}
	fallback := PaymentIntent{Provider: ProviderB, ProviderReference: strPtr(" R2 ")}

	assert.Equal(t, "R1", direct.Reference())
	assert.Equal(t, "C1", checkout.Reference())
	assert.Equal(t, "R2", fallback.Reference())
}
