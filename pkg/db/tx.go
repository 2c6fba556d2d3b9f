package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/gorm"
)

// RetryPolicy bounds retries of serializable transactions.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxTries:        5,
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     time.Second,
}

// RunSerializable runs fn in a serializable transaction, retrying serialization
// conflicts with exponential backoff. Any other error is returned as is.
func RunSerializable(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	return RunSerializableWithPolicy(ctx, conn, DefaultRetryPolicy, fn)
}

func RunSerializableWithPolicy(ctx context.Context, conn *gorm.DB, policy RetryPolicy, fn func(tx *gorm.DB) error) error {
	if policy.MaxTries == 0 {
		policy.MaxTries = 1
	}

	expo := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		expo.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		expo.MaxInterval = policy.MaxInterval
	}

	opts := serializableTxOptions(conn)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := conn.WithContext(ctx).Transaction(fn, opts...)
		if err == nil {
			return struct{}{}, nil
		}
		if IsSerializationFailure(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(policy.MaxTries),
	)
	return err
}

// SQLite transactions are always serializable and the driver rejects explicit levels.
func serializableTxOptions(conn *gorm.DB) []*sql.TxOptions {
	if conn == nil || conn.Dialector == nil || conn.Dialector.Name() == "sqlite" {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
}
