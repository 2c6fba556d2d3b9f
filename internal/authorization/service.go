package authorization

import (
	"context"

	"github.com/smallbiznis/paysettle/pkg/errs"
)

const (
	ObjectReconciliation = "reconciliation"
	ObjectReport         = "reconciliation_report"
	ObjectPaymentIntent  = "payment_intent"
)

const (
	ActionReconciliationRun    = "reconciliation.run"
	ActionReconciliationManual = "reconciliation.manual"
	ActionReportView           = "report.view"
	ActionReportExport         = "report.export"
	ActionPaymentIntentApprove = "payment_intent.approve"
)

const (
	RoleFinanceAdmin  = "finance_admin"
	RoleFinanceViewer = "finance_viewer"
	RoleSystem        = "system"
)

// ActorSystem is the subject used by background jobs.
const ActorSystem = "system"

type Service interface {
	// Authorize returns ErrForbidden unless actor may perform action on object.
	// actor is ActorSystem or an operator id.
	Authorize(ctx context.Context, actor string, object string, action string) error
	AssignRole(ctx context.Context, operatorID string, role string) error
}

var (
	ErrInvalidActor = errs.New(errs.KindValidation, "invalid_actor")
	ErrInvalidRole  = errs.New(errs.KindValidation, "invalid_role")
	ErrForbidden    = errs.New(errs.KindForbidden, "forbidden")
)
