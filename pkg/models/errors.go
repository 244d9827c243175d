package models

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

var ErrValidation = errors.New("validation failed")

// ValidationError rejects a request before any external call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

var ErrEmbeddingProvider = errors.New("embedding provider error")

// EmbeddingProviderError wraps a failed call to the external embedding
// provider. It is propagated to the caller unmodified; the caller decides
// whether to retry the whole remember/recall operation.
type EmbeddingProviderError struct {
	Message       string
	OriginalError error
}

func (e *EmbeddingProviderError) Error() string {
	return fmt.Sprintf("embedding provider error: %s (original error: %v)", e.Message, e.OriginalError)
}

func (e *EmbeddingProviderError) Unwrap() error {
	return ErrEmbeddingProvider
}

func NewEmbeddingProviderError(message string, originalError error) *EmbeddingProviderError {
	return &EmbeddingProviderError{Message: message, OriginalError: originalError}
}
