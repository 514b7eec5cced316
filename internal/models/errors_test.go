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
		kind ErrorKind
	}{
		{"validation", NewValidationError("bad input", nil), ErrorKindValidation},
		{"parser", NewParserError("unreachable", nil), ErrorKindParser},
		{"database", NewDatabaseError("timeout", nil), ErrorKindDatabase},
		{"security", NewSecurityError("traversal", nil), ErrorKindSecurity},
		{"not_found", NewNotFoundError("missing", nil), ErrorKindNotFound},
		{"untyped defaults to database", errors.New("dial tcp: connection refused"), ErrorKindDatabase},
		{"wrapped", fmt.Errorf("claim batch: %w", NewValidationError("bad", nil)), ErrorKindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(NewValidationError("bad input", nil)))
	assert.False(t, Retryable(NewSecurityError("traversal", nil)))
	assert.False(t, Retryable(NewNotFoundError("missing", nil)))

	assert.True(t, Retryable(NewParserError("unreachable", nil)))
	assert.True(t, Retryable(NewDatabaseError("timeout", nil)))
	// Untyped errors are treated as transient infrastructure failures.
	assert.True(t, Retryable(errors.New("broken pipe")))
}

func TestPipelineErrorMessage(t *testing.T) {
	err := NewParserError("fetch failed", errors.New("status 503"))
	assert.Equal(t, "parser: fetch failed: status 503", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "status 503")

	plain := NewValidationError("price is negative", map[string]interface{}{"row": 7})
	assert.Equal(t, "validation: price is negative", plain.Error())
	assert.Equal(t, 7, plain.Detail["row"])
}
