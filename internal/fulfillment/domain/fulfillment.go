// Package domain declares the business actions applied when a payment settles.
//
// Every method receives the caller's transaction so its writes commit or roll
// back together with the finalization flag.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	registrationdomain "github.com/smallbiznis/paysettle/internal/registration/domain"
	"gorm.io/gorm"
)

type UserProvisioner interface {
	// CreateUserFromRegistrationIntent is idempotent per registration intent.
	CreateUserFromRegistrationIntent(ctx context.Context, tx *gorm.DB, intent registrationdomain.RegistrationIntent) (snowflake.ID, error)
}

type PurchaseCompleter interface {
	CompletePublicPurchase(ctx context.Context, tx *gorm.DB, userID, productID snowflake.ID, reference string) error
}

type LegalDocumentFulfiller interface {
	// FulfillLegalDocumentPurchase grants ownership once. granted is false when
	// the user already owned the document.
	FulfillLegalDocumentPurchase(ctx context.Context, tx *gorm.DB, userID, documentID, paymentIntentID snowflake.ID) (granted bool, err error)
}

type User struct {
	ID                   snowflake.ID  `gorm:"primaryKey" json:"id"`
	Email                string        `gorm:"type:text;not null" json:"email"`
	FullName             string        `gorm:"type:text;not null" json:"full_name"`
	RegistrationIntentID *snowflake.ID `json:"registration_intent_id,omitempty"`
	CreatedAt            time.Time     `gorm:"not null" json:"created_at"`
}

func (User) TableName() string { return "users" }

type ContentPurchase struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID `gorm:"not null" json:"user_id"`
	ProductID snowflake.ID `gorm:"not null" json:"product_id"`
	Reference string       `gorm:"type:text;not null" json:"reference"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (ContentPurchase) TableName() string { return "content_purchases" }

type DocumentOwnership struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID          snowflake.ID  `gorm:"not null" json:"user_id"`
	DocumentID      snowflake.ID  `gorm:"not null" json:"document_id"`
	PaymentIntentID *snowflake.ID `json:"payment_intent_id,omitempty"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
}

func (DocumentOwnership) TableName() string { return "document_ownerships" }
