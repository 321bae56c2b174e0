package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures for API responses. Every user-visible failure
// carries exactly one kind plus a human-readable detail string.
type ErrorKind string

const (
	ErrKindValidation          ErrorKind = "validation_error"
	ErrKindConflict            ErrorKind = "conflict_error"
	ErrKindNotFound            ErrorKind = "not_found"
	ErrKindForbiddenTransition ErrorKind = "forbidden_transition"
	ErrKindSignature           ErrorKind = "signature_error"
	ErrKindExternalUnavailable ErrorKind = "external_unavailable"
	ErrKindInternal            ErrorKind = "internal_error"
)

// ValidationError reports bad input. No side effects occurred.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// NewValidationError creates a ValidationError with a formatted detail
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}

// ConflictError reports contention on shared state (seats already held,
// voucher exhausted). Safe to retry with different input.
type ConflictError struct {
	Detail string
	Seats  []string // contested seat identifiers, if seat-related
}

func (e *ConflictError) Error() string {
	if len(e.Seats) > 0 {
		return fmt.Sprintf("%s: %s", e.Detail, strings.Join(e.Seats, ", "))
	}
	return e.Detail
}

// NotFoundError reports an absent trip/voucher/reservation/payment.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ForbiddenTransitionError reports a state machine rejecting the requested move.
type ForbiddenTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *ForbiddenTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// SignatureError reports a gateway callback failing verification. Callbacks
// carrying this error are discarded without side effects and logged for
// security review; the detail is never surfaced to the payer.
type SignatureError struct {
	Detail string
}

func (e *SignatureError) Error() string {
	return e.Detail
}

// ExternalUnavailableError reports a gateway query/lookup failure. Callers
// retry with backoff; it is never treated as a payment success or failure.
type ExternalUnavailableError struct {
	Op  string
	Err error
}

func (e *ExternalUnavailableError) Error() string {
	return fmt.Sprintf("%s: external service unavailable: %v", e.Op, e.Err)
}

func (e *ExternalUnavailableError) Unwrap() error {
	return e.Err
}

// KindOf maps an error to its ErrorKind. Unrecognized errors are internal and
// must be reported generically without leaking storage details.
func KindOf(err error) ErrorKind {
	var (
		validationErr *ValidationError
		conflictErr   *ConflictError
		notFoundErr   *NotFoundError
		transitionErr *ForbiddenTransitionError
		signatureErr  *SignatureError
		externalErr   *ExternalUnavailableError
	)

	switch {
	case errors.As(err, &validationErr):
		return ErrKindValidation
	case errors.As(err, &conflictErr):
		return ErrKindConflict
	case errors.As(err, &notFoundErr):
		return ErrKindNotFound
	case errors.As(err, &transitionErr):
		return ErrKindForbiddenTransition
	case errors.As(err, &signatureErr):
		return ErrKindSignature
	case errors.As(err, &externalErr):
		return ErrKindExternalUnavailable
	default:
		return ErrKindInternal
	}
}
