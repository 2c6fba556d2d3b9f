package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/pkg/errs"
	"gorm.io/gorm"
)

// RegistrationIntent is a pending signup waiting for its fee to be paid.
type RegistrationIntent struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	Email              string       `gorm:"type:text;not null" json:"email"`
	FullName           string       `gorm:"type:text;not null" json:"full_name"`
	PaymentCompleted   bool         `gorm:"not null;default:false" json:"payment_completed"`
	PaymentCompletedAt *time.Time   `json:"payment_completed_at,omitempty"`
	CreatedAt          time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null" json:"updated_at"`
}

func (RegistrationIntent) TableName() string { return "registration_intents" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RegistrationIntent, error)
	MarkPaymentCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

var ErrRegistrationNotFound = errs.New(errs.KindNotFound, "registration_intent_not_found")
