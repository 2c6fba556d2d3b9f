package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysettle/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type subscriptionRow struct {
	ID        snowflake.ID
	OwnerID   snowflake.ID `gorm:"column:owner_id"`
	ProductID snowflake.ID
	Status    domain.SubscriptionStatus
	StartAt   time.Time
	EndAt     time.Time
	IsTrial   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r subscriptionRow) toDomain() *domain.Subscription {
	return &domain.Subscription{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		ProductID: r.ProductID,
		Status:    r.Status,
		StartAt:   r.StartAt,
		EndAt:     r.EndAt,
		IsTrial:   r.IsTrial,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func target(owner domain.Owner) (table, column string, err error) {
	switch owner.Kind {
	case domain.OwnerUser:
		return "user_subscriptions", "user_id", nil
	case domain.OwnerInstitution:
		return "institution_subscriptions", "institution_id", nil
	}
	return "", "", fmt.Errorf("%w: %q", domain.ErrUnknownOwner, owner.Kind)
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, owner domain.Owner, productID snowflake.ID) (*domain.Subscription, error) {
	table, column, err := target(owner)
	if err != nil {
		return nil, err
	}

	var row subscriptionRow
	err = withRowLock(db.WithContext(ctx)).
		Table(table).
		Select(fmt.Sprintf("id, %s AS owner_id, product_id, status, start_at, end_at, is_trial, created_at, updated_at", column)).
		Where(column+" = ? AND product_id = ?", owner.ID, productID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, owner domain.Owner, sub *domain.Subscription) error {
	table, column, err := target(owner)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`INSERT INTO %s (id, %s, product_id, status, start_at, end_at, is_trial, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, table, column),
		sub.ID, owner.ID, sub.ProductID, sub.Status, sub.StartAt, sub.EndAt, sub.IsTrial, sub.CreatedAt, sub.UpdatedAt,
	).Error
}

func (r *repo) UpdatePeriod(ctx context.Context, db *gorm.DB, owner domain.Owner, sub *domain.Subscription) error {
	table, _, err := target(owner)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE %s
		 SET status = ?, start_at = ?, end_at = ?, is_trial = ?, updated_at = ?
		 WHERE id = ?`, table),
		sub.Status, sub.StartAt, sub.EndAt, sub.IsTrial, sub.UpdatedAt, sub.ID,
	).Error
}

// SQLite serializes writers already and has no row locks.
func withRowLock(db *gorm.DB) *gorm.DB {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
