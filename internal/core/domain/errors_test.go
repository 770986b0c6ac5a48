package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrors_WrapInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"dimension mismatch", ErrDimensionMismatch},
		{"missing query", ErrMissingQuery},
		{"invalid tag filter", ErrInvalidTagFilter},
		{"validation error", NewValidationError("limit", "must be positive")},
		{"wrapped validation error", fmt.Errorf("search: %w", NewValidationError("q", "empty"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, ErrInvalidInput)
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("threshold", "must be between -1 and 1")
	assert.Equal(t, "invalid input: threshold: must be between -1 and 1", err.Error())

	err = NewValidationError("", "bad")
	assert.Equal(t, "invalid input: bad", err.Error())

	var ve *ValidationError
	require.True(t, errors.As(fmt.Errorf("outer: %w", err), &ve))
	assert.Equal(t, "bad", ve.Message)
}

func TestErrors_NotValidation(t *testing.T) {
	for _, err := range []error{ErrNotFound, ErrForbidden, ErrCacheMiss, ErrClosed, ErrVectorIndexUnavailable} {
		assert.NotErrorIs(t, err, ErrInvalidInput, err.Error())
	}
}
