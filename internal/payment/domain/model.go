package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Provider string

const (
	ProviderA      Provider = "PROVIDER_A"
	ProviderB      Provider = "PROVIDER_B"
	ProviderManual Provider = "MANUAL"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderA, ProviderB, ProviderManual:
		return true
	}
	return false
}

// UsesCheckoutReference reports whether intents for p are referenced by the
// checkout reference instead of the direct provider reference.
func (p Provider) UsesCheckoutReference() bool {
	return p == ProviderB
}

func ParseProvider(raw string) (Provider, bool) {
	p := Provider(strings.ToUpper(strings.TrimSpace(raw)))
	return p, p.Valid()
}

type IntentStatus string

const (
	IntentStatusPending         IntentStatus = "PENDING"
	IntentStatusPendingApproval IntentStatus = "PENDING_APPROVAL"
	IntentStatusSuccess         IntentStatus = "SUCCESS"
	IntentStatusFailed          IntentStatus = "FAILED"
	IntentStatusCancelled       IntentStatus = "CANCELLED"
)

type PurposeKind string

const (
	PurposeSignupFee               PurposeKind = "SIGNUP_FEE"
	PurposeProductPurchase         PurposeKind = "PRODUCT_PURCHASE"
	PurposeIndividualSubscription  PurposeKind = "INDIVIDUAL_SUBSCRIPTION"
	PurposeInstitutionSubscription PurposeKind = "INSTITUTION_SUBSCRIPTION"
	PurposeLegalDocumentPurchase   PurposeKind = "LEGAL_DOCUMENT_PURCHASE"
)

// PaymentIntent is the merchant's record of an attempted payment.
type PaymentIntent struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	Provider Provider     `gorm:"type:text;not null" json:"provider"`
	Purpose  PurposeKind  `gorm:"column:purpose;type:text;not null" json:"purpose"`
	Status   IntentStatus `gorm:"type:text;not null" json:"status"`

	Amount   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency string          `gorm:"type:text;not null" json:"currency"`

	UserID               *snowflake.ID `json:"user_id,omitempty"`
	RegistrationIntentID *snowflake.ID `json:"registration_intent_id,omitempty"`
	ContentProductID     *snowflake.ID `json:"content_product_id,omitempty"`
	PricePlanID          *snowflake.ID `json:"price_plan_id,omitempty"`
	InstitutionID        *snowflake.ID `json:"institution_id,omitempty"`
	LegalDocumentID      *snowflake.ID `json:"legal_document_id,omitempty"`
	DurationMonths       *int          `json:"duration_months,omitempty"`

	ProviderReference         *string    `json:"provider_reference,omitempty"`
	ProviderCheckoutReference *string    `json:"provider_checkout_reference,omitempty"`
	ProviderReceiptNumber     *string    `json:"provider_receipt_number,omitempty"`
	ProviderTransactionID     *string    `json:"provider_transaction_id,omitempty"`
	ProviderPaidAt            *time.Time `json:"provider_paid_at,omitempty"`
	ProviderChannel           *string    `json:"provider_channel,omitempty"`
	ProviderResultCode        *string    `json:"provider_result_code,omitempty"`
	ProviderResultDescription *string    `json:"provider_result_description,omitempty"`
	ManualReference           *string    `json:"manual_reference,omitempty"`

	IsFinalized bool          `gorm:"not null;default:false" json:"is_finalized"`
	FinalizedAt *time.Time    `json:"finalized_at,omitempty"`
	ApprovedBy  *string       `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time    `json:"approved_at,omitempty"`
	InvoiceID   *snowflake.ID `json:"invoice_id,omitempty"`
	AdminNotes  *string       `json:"admin_notes,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (PaymentIntent) TableName() string { return "payment_intents" }

// Reference is the key the provider uses to identify this intent.
func (i PaymentIntent) Reference() string {
	if i.Provider.UsesCheckoutReference() {
		if ref := deref(i.ProviderCheckoutReference); ref != "" {
			return ref
		}
	}
	return deref(i.ProviderReference)
}

func (i PaymentIntent) TransactionID() string {
	return deref(i.ProviderTransactionID)
}

// EffectiveAt is provider-paid-at, else updated-at, else created-at.
func (i PaymentIntent) EffectiveAt() time.Time {
	if i.ProviderPaidAt != nil && !i.ProviderPaidAt.IsZero() {
		return *i.ProviderPaidAt
	}
	if !i.UpdatedAt.IsZero() {
		return i.UpdatedAt
	}
	return i.CreatedAt
}

type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
	TransactionStatusPending TransactionStatus = "PENDING"
)

// ProviderTransaction is the provider's view of a settled transaction.
type ProviderTransaction struct {
	ID                    snowflake.ID      `gorm:"primaryKey" json:"id"`
	Provider              Provider          `gorm:"type:text;not null" json:"provider"`
	ProviderTransactionID string            `gorm:"type:text;not null" json:"provider_transaction_id"`
	Reference             *string           `json:"reference,omitempty"`
	Status                TransactionStatus `gorm:"type:text;not null" json:"status"`
	Amount                decimal.Decimal   `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency              string            `gorm:"type:text;not null" json:"currency"`
	Channel               *string           `json:"channel,omitempty"`
	PaidAt                *time.Time        `json:"paid_at,omitempty"`
	FirstSeenAt           time.Time         `gorm:"not null" json:"first_seen_at"`
	LastSeenAt            time.Time         `gorm:"not null" json:"last_seen_at"`
}

func (ProviderTransaction) TableName() string { return "provider_transactions" }

func (t ProviderTransaction) ReferenceValue() string {
	return deref(t.Reference)
}

// EffectiveAt is paid-at, else last-seen-at.
func (t ProviderTransaction) EffectiveAt() time.Time {
	if t.PaidAt != nil && !t.PaidAt.IsZero() {
		return *t.PaidAt
	}
	return t.LastSeenAt
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
