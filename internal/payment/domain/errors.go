package domain

import "github.com/smallbiznis/paysettle/pkg/errs"

var (
	ErrIntentNotFound       = errs.New(errs.KindNotFound, "payment_intent_not_found")
	ErrMissingCorrelation   = errs.New(errs.KindValidation, "payment_intent_missing_correlation")
	ErrInvalidProvider      = errs.New(errs.KindValidation, "invalid_provider")
	ErrInvalidTransactionID = errs.New(errs.KindValidation, "invalid_provider_transaction_id")
	ErrInvalidAmount        = errs.New(errs.KindValidation, "invalid_amount")
	ErrInvalidCurrency      = errs.New(errs.KindValidation, "invalid_currency")
	ErrReferenceConflict    = errs.New(errs.KindValidation, "provider_reference_conflict")
	ErrNotApprovable        = errs.New(errs.KindValidation, "payment_intent_not_approvable")
)
