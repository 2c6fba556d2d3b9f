// Package errs defines the error categories shared by every paysettle service.
//
// Domain packages declare their own sentinels with New so callers can match
// either the precise error or its category:
//
//	var ErrIntentNotFound = errs.New(errs.KindNotFound, "payment_intent_not_found")
//
//	errors.Is(err, ErrIntentNotFound)  // precise
//	errors.Is(err, errs.ErrNotFound)   // category
//
// Wrapping with context keeps both matches intact:
//
//	fmt.Errorf("%w: %w", errs.ErrDomainEffect, collaboratorErr)
package errs

import "errors"

type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindDomainEffect Kind = "domain_effect"
	KindStore        Kind = "store"
)

var (
	ErrValidation   = category(KindValidation)
	ErrNotFound     = category(KindNotFound)
	ErrConflict     = category(KindConflict)
	ErrForbidden    = category(KindForbidden)
	ErrDomainEffect = category(KindDomainEffect)
)

type Error struct {
	kind     Kind
	code     string
	category bool
}

func New(kind Kind, code string) *Error {
	return &Error{kind: kind, code: code}
}

func category(kind Kind) *Error {
	return &Error{kind: kind, code: string(kind), category: true}
}

func (e *Error) Error() string { return e.code }

func (e *Error) Code() string { return e.code }

func (e *Error) Kind() Kind { return e.kind }

// Is reports a match against the category sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.category && t.kind == e.kind
}

// KindOf classifies err. Unclassified errors are treated as store failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindStore
}
