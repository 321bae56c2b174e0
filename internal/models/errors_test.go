package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"Validation", NewValidationError("seat id %q is empty", ""), ErrKindValidation},
		{"Conflict", &ConflictError{Detail: "seats already reserved", Seats: []string{"A1"}}, ErrKindConflict},
		{"NotFound", &NotFoundError{Resource: "trip", ID: "trip-1"}, ErrKindNotFound},
		{"ForbiddenTransition", &ForbiddenTransitionError{Entity: "trip", From: "completed", To: "scheduled"}, ErrKindForbiddenTransition},
		{"Signature", &SignatureError{Detail: "secure hash mismatch"}, ErrKindSignature},
		{"ExternalUnavailable", &ExternalUnavailableError{Op: "query", Err: errors.New("timeout")}, ErrKindExternalUnavailable},
		{"WrappedConflict", fmt.Errorf("redeem voucher: %w", &ConflictError{Detail: "voucher exhausted"}), ErrKindConflict},
		{"Unrecognized", errors.New("disk on fire"), ErrKindInternal},
		{"Nil", nil, ErrKindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestConflictErrorMessage(t *testing.T) {
	withSeats := &ConflictError{Detail: "seats already reserved", Seats: []string{"A1", "B2"}}
	assert.Equal(t, "seats already reserved: A1, B2", withSeats.Error())

	plain := &ConflictError{Detail: "voucher exhausted"}
	assert.Equal(t, "voucher exhausted", plain.Error())
}

func TestExternalUnavailableUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ExternalUnavailableError{Op: "query transaction", Err: cause}
	assert.ErrorIs(t, err, cause)
}
