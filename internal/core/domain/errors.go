package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	// Every validation failure wraps this error.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrDimensionMismatch indicates an embedding has the wrong number of components.
	ErrDimensionMismatch = fmt.Errorf("%w: embedding dimension mismatch", ErrInvalidInput)

	// ErrMissingQuery indicates neither a keyword query nor an embedding was supplied.
	ErrMissingQuery = fmt.Errorf("%w: a query or an embedding is required", ErrInvalidInput)

	// ErrInvalidTagFilter indicates the tag filter is not a key/value object.
	ErrInvalidTagFilter = fmt.Errorf("%w: tag filter must be an object of string values", ErrInvalidInput)

	// ErrForbidden indicates the caller is not allowed to perform the operation.
	// Setting and clearing the tenant context require a trusted caller.
	ErrForbidden = errors.New("forbidden")

	// ErrEmbeddingUnavailable indicates the embedding producer is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSearchUnavailable indicates the text index is not configured.
	// Keyword search is disabled.
	ErrSearchUnavailable = errors.New("search engine unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	// Semantic similarity search is disabled.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrCacheMiss indicates a document is not present in the cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrClosed indicates the component has been shut down.
	ErrClosed = errors.New("closed")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Message)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
