package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassesThroughDomainErrors(t *testing.T) {
	original := NewInvalidTransition("NEW", "CLOSED")
	wrapped := fmt.Errorf("transition: %w", original)

	got := ToDomainError(wrapped)
	assert.Equal(t, "INVALID_TRANSITION", got.Code)
	assert.Equal(t, http.StatusConflict, got.HTTPStatus)
}

func TestToDomainErrorMapsNoRowsToNotFound(t *testing.T) {
	got := ToDomainError(fmt.Errorf("query: %w", pgx.ErrNoRows))
	assert.Equal(t, "NOT_FOUND", got.Code)
	assert.Equal(t, http.StatusNotFound, got.HTTPStatus)
}

func TestToDomainErrorWrapsUnknownErrors(t *testing.T) {
	got := ToDomainError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
}

func TestIsCode(t *testing.T) {
	err := NewValidationError("bad input", nil)
	assert.True(t, IsCode(err, "VALIDATION_FAILED"))
	assert.False(t, IsCode(err, "NOT_FOUND"))
	assert.False(t, IsCode(nil, "VALIDATION_FAILED"))
	assert.False(t, IsCode(errors.New("plain"), "VALIDATION_FAILED"))
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageError(cause)
	require.ErrorIs(t, err, cause)
}
