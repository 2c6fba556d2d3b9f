package domain

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Purpose is the decoded reason for a payment. Each variant carries exactly
// the correlation fields it requires; dispatch with a type switch.
type Purpose interface {
	Kind() PurposeKind
	sealed()
}

type SignupFee struct {
	RegistrationIntentID snowflake.ID
}

type ProductPurchase struct {
	UserID    snowflake.ID
	ProductID snowflake.ID
}

type IndividualSubscription struct {
	UserID       snowflake.ID
	ProductID    snowflake.ID
	PricePlanID  *snowflake.ID
	LegacyMonths *int
}

type InstitutionSubscription struct {
	InstitutionID snowflake.ID
	ProductID     snowflake.ID
	PricePlanID   *snowflake.ID
	LegacyMonths  *int
}

type LegalDocumentPurchase struct {
	UserID     snowflake.ID
	DocumentID snowflake.ID
}

// UnknownPurpose is a purpose this build does not handle. It is skipped, not rejected.
type UnknownPurpose struct {
	Raw PurposeKind
}

func (SignupFee) Kind() PurposeKind               { return PurposeSignupFee }
func (ProductPurchase) Kind() PurposeKind         { return PurposeProductPurchase }
func (IndividualSubscription) Kind() PurposeKind  { return PurposeIndividualSubscription }
func (InstitutionSubscription) Kind() PurposeKind { return PurposeInstitutionSubscription }
func (LegalDocumentPurchase) Kind() PurposeKind   { return PurposeLegalDocumentPurchase }
func (u UnknownPurpose) Kind() PurposeKind        { return u.Raw }

func (SignupFee) sealed()               {}
func (ProductPurchase) sealed()         {}
func (IndividualSubscription) sealed()  {}
func (InstitutionSubscription) sealed() {}
func (LegalDocumentPurchase) sealed()   {}
func (UnknownPurpose) sealed()          {}

// DecodePurpose builds the purpose variant from the intent's correlation
// columns. A missing required field is a validation failure.
func (i PaymentIntent) DecodePurpose() (Purpose, error) {
	switch i.Purpose {
	case PurposeSignupFee:
		if i.RegistrationIntentID == nil {
			return nil, missingField(i, "registration_intent_id")
		}
		return SignupFee{RegistrationIntentID: *i.RegistrationIntentID}, nil

	case PurposeProductPurchase:
		if i.UserID == nil {
			return nil, missingField(i, "user_id")
		}
		if i.ContentProductID == nil {
			return nil, missingField(i, "content_product_id")
		}
		return ProductPurchase{UserID: *i.UserID, ProductID: *i.ContentProductID}, nil

	case PurposeIndividualSubscription:
		if i.UserID == nil {
			return nil, missingField(i, "user_id")
		}
		if i.ContentProductID == nil {
			return nil, missingField(i, "content_product_id")
		}
		return IndividualSubscription{
			UserID:       *i.UserID,
			ProductID:    *i.ContentProductID,
			PricePlanID:  i.PricePlanID,
			LegacyMonths: i.DurationMonths,
		}, nil

	case PurposeInstitutionSubscription:
		if i.InstitutionID == nil {
			return nil, missingField(i, "institution_id")
		}
		if i.ContentProductID == nil {
			return nil, missingField(i, "content_product_id")
		}
		return InstitutionSubscription{
			InstitutionID: *i.InstitutionID,
			ProductID:     *i.ContentProductID,
			PricePlanID:   i.PricePlanID,
			LegacyMonths:  i.DurationMonths,
		}, nil

	case PurposeLegalDocumentPurchase:
		if i.UserID == nil {
			return nil, missingField(i, "user_id")
		}
		if i.LegalDocumentID == nil {
			return nil, missingField(i, "legal_document_id")
		}
		return LegalDocumentPurchase{UserID: *i.UserID, DocumentID: *i.LegalDocumentID}, nil

	default:
		return UnknownPurpose{Raw: i.Purpose}, nil
	}
}

func missingField(i PaymentIntent, field string) error {
	return fmt.Errorf("%w: payment intent %s purpose %s requires %s", ErrMissingCorrelation, i.ID, i.Purpose, field)
}
