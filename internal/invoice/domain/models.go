// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
	InvoiceStatusVoid   InvoiceStatus = "VOID"
)

// Invoice is issued at most once per payment intent.
type Invoice struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceNumber   string          `gorm:"type:text;not null;uniqueIndex" json:"invoice_number"`
	PaymentIntentID snowflake.ID    `gorm:"not null;uniqueIndex" json:"payment_intent_id"`
	Currency        string          `gorm:"type:text;not null" json:"currency"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"total_amount"`
	Status          InvoiceStatus   `gorm:"type:text;not null" json:"status"`
	IssuedAt        time.Time       `gorm:"not null" json:"issued_at"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
}

func (Invoice) TableName() string { return "invoices" }

type InvoiceLine struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	UnitAmount  decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"unit_amount"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"line_total"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (InvoiceLine) TableName() string { return "invoice_lines" }

// InvoiceSequence holds the last issued number for a calendar year.
type InvoiceSequence struct {
	Year      int       `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (InvoiceSequence) TableName() string { return "invoice_sequences" }

// CheckTotals verifies every line total is quantity*unit and that lines sum to the invoice total.
func CheckTotals(inv Invoice, lines []InvoiceLine) error {
	sum := decimal.Zero
	for _, line := range lines {
		if !line.UnitAmount.Mul(decimal.NewFromInt(line.Quantity)).Equal(line.LineTotal) {
			return ErrTotalMismatch
		}
		sum = sum.Add(line.LineTotal)
	}
	if !sum.Equal(inv.TotalAmount) {
		return ErrTotalMismatch
	}
	return nil
}
