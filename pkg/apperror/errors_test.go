package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NewNotFoundError("Order").Code)
	assert.Equal(t, "Order not found", NewNotFoundError("Order").Message)
	assert.Equal(t, http.StatusUnprocessableEntity, NewValidationError("empty").Code)
	assert.Equal(t, http.StatusConflict, NewConflictError("busy").Code)
	assert.Equal(t, http.StatusBadRequest, NewBadRequestError("nope").Code)
	assert.Equal(t, http.StatusBadGateway, NewProviderError("down").Code)
}

func TestGetAppErrorPassesThrough(t *testing.T) {
	appErr := NewConflictError("busy")
	assert.Same(t, appErr, GetAppError(appErr))

	wrapped := fmt.Errorf("handling request: %w", appErr)
	assert.Same(t, appErr, GetAppError(wrapped))
}

func TestGetAppErrorWrapsUnknown(t *testing.T) {
	got := GetAppError(errors.New("disk full"))
	assert.Equal(t, http.StatusInternalServerError, got.Code)
	assert.Equal(t, "disk full", got.Message)
}

func TestIsAlreadyReconciled(t *testing.T) {
	assert.True(t, IsAlreadyReconciled(ErrAlreadyReconciled))
	assert.True(t, IsAlreadyReconciled(fmt.Errorf("confirm: %w", ErrAlreadyReconciled)))
	assert.False(t, IsAlreadyReconciled(NewConflictError("busy")))
	assert.False(t, IsAlreadyReconciled(nil))

	// Informational outcome, rendered as a success.
	assert.Less(t, ErrAlreadyReconciled.Code, 400)
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(NewValidationError("x")))
	assert.False(t, IsAppError(errors.New("plain")))
}
