package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIntent(ctx context.Context, db *gorm.DB, intent *domain.PaymentIntent) error {
	return db.WithContext(ctx).Create(intent).Error
}

func (r *repo) FindIntentByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	err := db.WithContext(ctx).Where("id = ?", id).Take(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repo) FindIntentForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	err := withRowLock(db.WithContext(ctx)).Where("id = ?", id).Take(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repo) MarkFinalized(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_intents
		 SET is_finalized = ?, finalized_at = ?, updated_at = ?
		 WHERE id = ? AND is_finalized = ? AND status = ?`,
		true, at, at, id, false, domain.IntentStatusSuccess,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) StampApproval(ctx context.Context, db *gorm.DB, id snowflake.ID, approverID *string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_intents
		 SET approved_by = ?, approved_at = ?, updated_at = ?
		 WHERE id = ?`,
		approverID, at, at, id,
	).Error
}

func (r *repo) PromoteApproved(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_intents
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.IntentStatusSuccess, at, id, domain.IntentStatusPendingApproval,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ApplyManualSettlement(ctx context.Context, db *gorm.DB, id snowflake.ID, s domain.ManualSettlement, at time.Time) error {
	updates := map[string]any{
		"provider":                s.Provider,
		"provider_transaction_id": s.ProviderTransactionID,
		"provider_paid_at":        s.PaidAt,
		"status":                  domain.IntentStatusSuccess,
		"updated_at":              at,
	}
	if s.Reference != nil {
		updates["manual_reference"] = *s.Reference
		if s.Provider.UsesCheckoutReference() {
			updates["provider_checkout_reference"] = *s.Reference
		} else {
			updates["provider_reference"] = *s.Reference
		}
	}
	if s.Channel != nil {
		updates["provider_channel"] = *s.Channel
	}
	if s.Notes != nil {
		updates["admin_notes"] = *s.Notes
	}

	res := db.WithContext(ctx).Model(&domain.PaymentIntent{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrIntentNotFound
	}
	return nil
}

func (r *repo) AttachInvoice(ctx context.Context, db *gorm.DB, id, invoiceID snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_intents
		 SET invoice_id = ?, updated_at = ?
		 WHERE id = ? AND invoice_id IS NULL`,
		invoiceID, at, id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListIntentsInWindow(ctx context.Context, db *gorm.DB, q domain.IntentWindowQuery) ([]domain.PaymentIntent, error) {
	stmt := db.WithContext(ctx).Model(&domain.PaymentIntent{}).
		Where("COALESCE(provider_paid_at, updated_at, created_at) >= ?", q.From).
		Where("COALESCE(provider_paid_at, updated_at, created_at) < ?", q.To)
	if q.Provider != nil {
		stmt = stmt.Where("provider = ?", *q.Provider)
	}

	var items []domain.PaymentIntent
	if err := stmt.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListUnfinalized(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]domain.PaymentIntent, error) {
	var items []domain.PaymentIntent
	err := db.WithContext(ctx).
		Where("status = ? AND is_finalized = ? AND updated_at <= ?", domain.IntentStatusSuccess, false, olderThan).
		Order("updated_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListUnfulfilledDocumentPurchases(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]domain.PaymentIntent, error) {
	var items []domain.PaymentIntent
	err := db.WithContext(ctx).Raw(
		`SELECT pi.*
		 FROM payment_intents pi
		 WHERE pi.status = ?
		   AND pi.purpose = ?
		   AND pi.user_id IS NOT NULL
		   AND pi.legal_document_id IS NOT NULL
		   AND pi.updated_at <= ?
		   AND NOT EXISTS (
			SELECT 1 FROM document_ownerships o
			WHERE o.user_id = pi.user_id AND o.document_id = pi.legal_document_id
		   )
		 ORDER BY pi.updated_at ASC, pi.id ASC
		 LIMIT ?`,
		domain.IntentStatusSuccess,
		domain.PurposeLegalDocumentPurchase,
		olderThan,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.ProviderTransaction) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "provider_transaction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"reference",
			"status",
			"amount",
			"currency",
			"channel",
			"paid_at",
			"last_seen_at",
		}),
	}).Create(txn).Error
}

func (r *repo) FindTransaction(ctx context.Context, db *gorm.DB, provider domain.Provider, providerTransactionID string) (*domain.ProviderTransaction, error) {
	var txn domain.ProviderTransaction
	err := db.WithContext(ctx).
		Where("provider = ? AND provider_transaction_id = ?", provider, providerTransactionID).
		Take(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repo) ListTransactionsInWindow(ctx context.Context, db *gorm.DB, q domain.TransactionWindowQuery) ([]domain.ProviderTransaction, error) {
	stmt := db.WithContext(ctx).Model(&domain.ProviderTransaction{}).
		Where("COALESCE(paid_at, last_seen_at) >= ?", q.From).
		Where("COALESCE(paid_at, last_seen_at) < ?", q.To)
	if q.Provider != nil {
		stmt = stmt.Where("provider = ?", *q.Provider)
	}

	var items []domain.ProviderTransaction
	if err := stmt.Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// SQLite serializes writers already and has no row locks.
func withRowLock(db *gorm.DB) *gorm.DB {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
