package domain

import "github.com/smallbiznis/paysettle/pkg/errs"

var (
	ErrTotalMismatch   = errs.New(errs.KindValidation, "invoice_total_mismatch")
	ErrInvoiceNotFound = errs.New(errs.KindNotFound, "invoice_not_found")
	ErrInvalidTemplate = errs.New(errs.KindValidation, "invoice_number_template_invalid")
)
