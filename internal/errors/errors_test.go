package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := ValidationError("invalid rotation")

	assert.Equal(t, TypeValidation, err.Type)
	assert.Equal(t, "invalid rotation", err.Message)
	assert.Nil(t, err.Cause)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Contains(t, err.Error(), "validation")
	assert.Contains(t, err.Error(), "invalid rotation")
}

func TestNotFoundError(t *testing.T) {
	err := NotFoundError("display not found")

	assert.Equal(t, TypeNotFound, err.Type)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus())
	assert.Contains(t, err.Error(), "not_found")
}

func TestInternalErrorCarriesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := InternalError("failed to list displays", cause)

	assert.Equal(t, TypeInternal, err.Type)
	assert.Equal(t, cause, err.Cause)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestExternalErrorMapsToBadGateway(t *testing.T) {
	err := ExternalError("calendar fetch failed", fmt.Errorf("timeout"))
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus())
}

func TestWithFieldChains(t *testing.T) {
	err := ValidationError("bad input").
		WithField("display", "lobby").
		WithField("rotation", 45)

	assert.Equal(t, "lobby", err.Context["display"])
	assert.Equal(t, 45, err.Context["rotation"])
}

func TestToResponse(t *testing.T) {
	err := NotFoundError("slideshow not found").WithField("id", int64(7))

	resp := err.ToResponse()
	assert.Equal(t, "slideshow not found", resp.Error)
	assert.Equal(t, TypeNotFound, resp.Type)
	assert.Equal(t, int64(7), resp.Context["id"])
}

func TestAsStructuredError(t *testing.T) {
	t.Run("passes typed errors through", func(t *testing.T) {
		original := ConflictError("duplicate name")
		wrapped := fmt.Errorf("handler: %w", original)

		got := AsStructuredError(wrapped)
		require.NotNil(t, got)
		assert.Same(t, original, got)
	})

	t.Run("wraps plain errors as internal", func(t *testing.T) {
		plain := errors.New("boom")

		got := AsStructuredError(plain)
		require.NotNil(t, got)
		assert.Equal(t, TypeInternal, got.Type)
		assert.ErrorIs(t, got, plain)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})
}
