package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		field          string
		message        string
		cause          error
		expectedString string
	}{
		{
			name:           "with field",
			field:          "/users/:id",
			message:        "expected 2 parameters",
			cause:          nil,
			expectedString: "config error at /users/:id: expected 2 parameters",
		},
		{
			name:           "without field",
			field:          "",
			message:        "invalid configuration",
			cause:          nil,
			expectedString: "config error: invalid configuration",
		},
		{
			name:           "with cause",
			field:          "static[0].path",
			message:        "invalid directory for static content",
			cause:          errors.New("no such file or directory"),
			expectedString: "config error at static[0].path: invalid directory for static content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var err *ConfigError
			if tt.cause != nil {
				err = NewConfigErrorWithCause(tt.field, tt.message, tt.cause)
			} else {
				err = NewConfigError(tt.field, tt.message)
			}

			assert.Equal(t, tt.expectedString, err.Error())
			assert.Equal(t, tt.field, err.Field)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.cause, err.Unwrap())
		})
	}
}

func TestConfigError_Is(t *testing.T) {
	t.Parallel()

	err := NewConfigError("field", "message")

	assert.True(t, err.Is(&ConfigError{}))
	assert.True(t, errors.Is(err, ErrConfigInvalid))
	assert.False(t, err.Is(errors.New("other error")))

	errWithCause := NewConfigErrorWithCause("field", "message", ErrInvalidInput)
	assert.True(t, errors.Is(errWithCause, ErrInvalidInput))

	wrapped := fmt.Errorf("startup: %w", errWithCause)
	assert.True(t, errors.Is(wrapped, ErrConfigInvalid))
}

func TestRouteNotFoundError(t *testing.T) {
	t.Parallel()

	err := NewRouteNotFoundError("GET", "/missing")

	assert.Equal(t, "no route found for GET /missing", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, err.Is(&RouteNotFoundError{}))
	assert.False(t, errors.Is(err, ErrMethodNotAllowed))
}

func TestMethodNotAllowedError(t *testing.T) {
	t.Parallel()

	err := NewMethodNotAllowedError("GET", "/items")

	assert.Equal(t, "method GET not allowed for /items", err.Error())
	assert.True(t, errors.Is(err, ErrMethodNotAllowed))
	assert.True(t, err.Is(&MethodNotAllowedError{}))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestIsClientError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "not found", err: NewRouteNotFoundError("GET", "/"), expected: true},
		{name: "method not allowed", err: NewMethodNotAllowedError("POST", "/"), expected: true},
		{name: "invalid input", err: ErrInvalidInput, expected: true},
		{name: "config", err: NewConfigError("", "boom"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsClientError(tt.err))
		})
	}
}
