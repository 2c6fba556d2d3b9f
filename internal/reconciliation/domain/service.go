package domain

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/paysettle/internal/payment/domain"
	"github.com/smallbiznis/paysettle/pkg/db/pagination"
)

// RunRequest selects the window [From, To) and an optional provider.
type RunRequest struct {
	From       time.Time
	To         time.Time
	Provider   *paymentdomain.Provider
	OperatorID *string
	Mode       RunMode
}

type RunSummary struct {
	RunID  snowflake.ID       `json:"run_id"`
	Counts map[ItemStatus]int `json:"counts"`
	Total  int                `json:"total"`
}

// ManualReconcileRequest is an operator override. One of Reference or
// TransactionID is required.
type ManualReconcileRequest struct {
	IntentID      snowflake.ID    `validate:"required"`
	Provider      string          `validate:"required,oneof=PROVIDER_A PROVIDER_B MANUAL"`
	Amount        decimal.Decimal `validate:"-"`
	Currency      string          `validate:"required,len=3,alpha"`
	Reference     string          `validate:"required_without=TransactionID,max=128"`
	TransactionID string          `validate:"required_without=Reference,max=128"`
	PaidAt        time.Time       `validate:"required"`
	Channel       *string         `validate:"omitempty,max=64"`
	Notes         *string         `validate:"omitempty,max=2000"`
	OperatorID    string          `validate:"required"`
}

type ReportFilter struct {
	RunID       *snowflake.ID
	Provider    *paymentdomain.Provider
	Statuses    []ItemStatus
	Reference   string
	From        *time.Time
	To          *time.Time
	RequestedBy *string
}

type Report struct {
	Items  []Item               `json:"items"`
	Counts map[ItemStatus]int64 `json:"counts"`
	pagination.PageInfo
}

type Service interface {
	RunReconciliation(ctx context.Context, req RunRequest) (*RunSummary, error)
	ManualReconcile(ctx context.Context, req ManualReconcileRequest) (snowflake.ID, error)
	GetReconciliationReport(ctx context.Context, filter ReportFilter, page pagination.Pagination) (*Report, error)
	ExportReport(ctx context.Context, filter ReportFilter, w io.Writer) error
}
