// Package dbtest opens in-memory SQLite databases carrying the paysettle schema.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// Schema mirrors the migrations using SQLite types.
var Schema = []string{
	`CREATE TABLE payment_intents (
		id BIGINT PRIMARY KEY,
		provider TEXT NOT NULL,
		purpose TEXT NOT NULL,
		status TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		currency TEXT NOT NULL,
		user_id BIGINT,
		registration_intent_id BIGINT,
		content_product_id BIGINT,
		price_plan_id BIGINT,
		institution_id BIGINT,
		legal_document_id BIGINT,
		duration_months INTEGER,
		provider_reference TEXT,
		provider_checkout_reference TEXT,
		provider_receipt_number TEXT,
		provider_transaction_id TEXT,
		provider_paid_at TIMESTAMP,
		provider_channel TEXT,
		provider_result_code TEXT,
		provider_result_description TEXT,
		manual_reference TEXT,
		is_finalized BOOLEAN NOT NULL DEFAULT FALSE,
		finalized_at TIMESTAMP,
		approved_by TEXT,
		approved_at TIMESTAMP,
		invoice_id BIGINT,
		admin_notes TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_payment_intents_provider_reference ON payment_intents(provider, provider_reference)`,
	`CREATE UNIQUE INDEX ux_payment_intents_provider_txn ON payment_intents(provider, provider_transaction_id)`,
	`CREATE TABLE provider_transactions (
		id BIGINT PRIMARY KEY,
		provider TEXT NOT NULL,
		provider_transaction_id TEXT NOT NULL,
		reference TEXT,
		status TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		currency TEXT NOT NULL,
		channel TEXT,
		paid_at TIMESTAMP,
		first_seen_at TIMESTAMP NOT NULL,
		last_seen_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_provider_transactions_key ON provider_transactions(provider, provider_transaction_id)`,
	`CREATE TABLE reconciliation_runs (
		id BIGINT PRIMARY KEY,
		provider TEXT,
		window_from TIMESTAMP NOT NULL,
		window_to TIMESTAMP NOT NULL,
		operator_id TEXT,
		mode TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE reconciliation_items (
		id BIGINT PRIMARY KEY,
		run_id BIGINT NOT NULL,
		provider TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		payment_intent_id BIGINT,
		provider_transaction_id TEXT,
		invoice_id BIGINT,
		status TEXT NOT NULL,
		reason TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX ix_reconciliation_items_run ON reconciliation_items(run_id)`,
	`CREATE TABLE invoices (
		id BIGINT PRIMARY KEY,
		invoice_number TEXT NOT NULL,
		payment_intent_id BIGINT NOT NULL,
		currency TEXT NOT NULL,
		total_amount NUMERIC NOT NULL,
		status TEXT NOT NULL,
		issued_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_invoices_number ON invoices(invoice_number)`,
	`CREATE UNIQUE INDEX ux_invoices_payment_intent ON invoices(payment_intent_id)`,
	`CREATE TABLE invoice_lines (
		id BIGINT PRIMARY KEY,
		invoice_id BIGINT NOT NULL,
		description TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_amount NUMERIC NOT NULL,
		line_total NUMERIC NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE invoice_sequences (
		year INTEGER PRIMARY KEY,
		last_value BIGINT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE registration_intents (
		id BIGINT PRIMARY KEY,
		email TEXT NOT NULL,
		full_name TEXT NOT NULL,
		payment_completed BOOLEAN NOT NULL DEFAULT FALSE,
		payment_completed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE pricing_plans (
		id BIGINT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		billing_period TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		effective_from TIMESTAMP,
		effective_to TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE user_subscriptions (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		status TEXT NOT NULL,
		start_at TIMESTAMP NOT NULL,
		end_at TIMESTAMP NOT NULL,
		is_trial BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_user_subscriptions_owner ON user_subscriptions(user_id, product_id)`,
	`CREATE TABLE institution_subscriptions (
		id BIGINT PRIMARY KEY,
		institution_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		status TEXT NOT NULL,
		start_at TIMESTAMP NOT NULL,
		end_at TIMESTAMP NOT NULL,
		is_trial BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_institution_subscriptions_owner ON institution_subscriptions(institution_id, product_id)`,
	`CREATE TABLE users (
		id BIGINT PRIMARY KEY,
		email TEXT NOT NULL,
		full_name TEXT NOT NULL,
		registration_intent_id BIGINT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_users_registration_intent ON users(registration_intent_id)`,
	`CREATE TABLE content_purchases (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		reference TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_content_purchases_key ON content_purchases(user_id, product_id, reference)`,
	`CREATE TABLE document_ownerships (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		document_id BIGINT NOT NULL,
		payment_intent_id BIGINT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_document_ownerships_key ON document_ownerships(user_id, document_id)`,
}

// Open returns a fresh shared-cache in-memory database with Schema applied.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:paysettle_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	for _, stmt := range Schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Count returns the number of rows in table matching the optional where clause.
func Count(t testing.TB, db *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()

	stmt := db.Table(table)
	if where != "" {
		stmt = stmt.Where(where, args...)
	}
	var count int64
	if err := stmt.Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
