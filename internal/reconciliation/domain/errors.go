package domain

import "github.com/smallbiznis/paysettle/pkg/errs"

var (
	ErrInvalidWindow    = errs.New(errs.KindValidation, "reconciliation_window_invalid")
	ErrInvalidRequest   = errs.New(errs.KindValidation, "manual_reconcile_request_invalid")
	ErrInvalidFilter    = errs.New(errs.KindValidation, "reconciliation_report_filter_invalid")
	ErrInvalidPageToken = errs.New(errs.KindValidation, "reconciliation_report_page_token_invalid")
	ErrRunNotFound      = errs.New(errs.KindNotFound, "reconciliation_run_not_found")
)
