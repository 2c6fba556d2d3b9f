package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) IncrementSequence(ctx context.Context, db *gorm.DB, year int, at time.Time) (int64, error) {
	row := domain.InvoiceSequence{Year: year, LastValue: 1, UpdatedAt: at}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "year"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_value": gorm.Expr("invoice_sequences.last_value + 1"),
			"updated_at": at,
		}),
	}).Create(&row).Error
	if err != nil {
		return 0, err
	}

	var current domain.InvoiceSequence
	if err := db.WithContext(ctx).Where("year = ?", year).Take(&current).Error; err != nil {
		return 0, err
	}
	return current.LastValue, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, inv *domain.Invoice, lines []domain.InvoiceLine) error {
	if err := db.WithContext(ctx).Create(inv).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByPaymentIntent(ctx context.Context, db *gorm.DB, paymentIntentID snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(ctx, db, "payment_intent_id = ?", paymentIntentID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := db.WithContext(ctx).Where(where, arg).Take(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceLine, error) {
	var lines []domain.InvoiceLine
	if err := db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Order("id ASC").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}
