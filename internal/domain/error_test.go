package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
		{
			name: "domain error",
			err:  &Error{Code: EINVALID, Message: "bad input"},
			want: EINVALID,
		},
		{
			name: "wrapped domain error",
			err:  fmt.Errorf("outer: %w", &Error{Code: ENOTFOUND, Message: "gone"}),
			want: ENOTFOUND,
		},
		{
			name: "plain error defaults to internal",
			err:  errors.New("boom"),
			want: EINTERNAL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	t.Run("user-facing message passes through", func(t *testing.T) {
		err := &Error{Code: EINVALID, Message: "quantity must be positive"}
		assert.Equal(t, "quantity must be positive", ErrorMessage(err))
	})

	t.Run("internal errors are masked", func(t *testing.T) {
		err := Internal(errors.New("pq: connection refused"), "order.create", "failed to save order")
		msg := ErrorMessage(err)
		assert.NotContains(t, msg, "connection refused")
		assert.Contains(t, msg, "internal error")
	})

	t.Run("unknown errors are masked", func(t *testing.T) {
		msg := ErrorMessage(errors.New("pq: connection refused"))
		assert.NotContains(t, msg, "connection refused")
	})
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("row not found")
	err := Internal(cause, "order.get", "query failed")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "order.get", ErrorOp(err))
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  &Error{Message: "not found"},
			want: "not found",
		},
		{
			name: "op and message",
			err:  &Error{Op: "order.get", Message: "not found"},
			want: "order.get: not found",
		},
		{
			name: "op, message and cause",
			err:  &Error{Op: "order.get", Message: "query failed", Err: errors.New("timeout")},
			want: "order.get: query failed: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(ErrOrderNotFound, ENOTFOUND))
	assert.False(t, IsCode(ErrOrderNotFound, EINVALID))
	assert.True(t, IsCode(fmt.Errorf("ctx: %w", ErrInvalidSignature), EPAYMENT))
}
