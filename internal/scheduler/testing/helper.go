// Package testing ages payment intents so healing jobs pick them up in tests.
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	"gorm.io/gorm"
)

type IntentAger struct {
	db *gorm.DB
}

func NewIntentAger(db *gorm.DB) *IntentAger {
	return &IntentAger{db: db}
}

// AgeIntent moves updated_at back so the intent is age old at now.
func (a *IntentAger) AgeIntent(ctx context.Context, id snowflake.ID, now time.Time, age time.Duration) error {
	return a.db.WithContext(ctx).Exec(
		`UPDATE payment_intents SET updated_at = ? WHERE id = ?`,
		now.Add(-age),
		id,
	).Error
}

// AgeAllUnfinalized ages every SUCCESS intent that is not finalized yet.
func (a *IntentAger) AgeAllUnfinalized(ctx context.Context, now time.Time, age time.Duration) (int64, error) {
	res := a.db.WithContext(ctx).Exec(
		`UPDATE payment_intents
		 SET updated_at = ?
		 WHERE status = ? AND is_finalized = ?`,
		now.Add(-age),
		paymentdomain.IntentStatusSuccess,
		false,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// IntentState is a snapshot for assertions.
type IntentState struct {
	ID          snowflake.ID
	Status      paymentdomain.IntentStatus
	IsFinalized bool
	UpdatedAt   time.Time
}

func (a *IntentAger) State(ctx context.Context, id snowflake.ID) (*IntentState, error) {
	var state IntentState
	err := a.db.WithContext(ctx).Raw(
		`SELECT id, status, is_finalized, updated_at
		 FROM payment_intents
		 WHERE id = ?`,
		id,
	).Scan(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}
