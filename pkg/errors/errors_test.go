package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentity(t *testing.T) {
	cloned := Clone(ErrNotFound, "applicant not found")

	assert.Equal(t, "applicant not found", cloned.Message)
	assert.Equal(t, http.StatusNotFound, cloned.Status)
	assert.True(t, errors.Is(cloned, ErrNotFound))
	assert.False(t, errors.Is(cloned, ErrValidation))
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	plain := fmt.Errorf("boom")

	appErr := FromError(plain)

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, plain)
	assert.Nil(t, FromError(nil))
}

func TestFromErrorFindsWrappedAppError(t *testing.T) {
	inner := Clone(ErrUpstream, "sheet unavailable")
	wrapped := fmt.Errorf("refresh: %w", inner)

	appErr := FromError(wrapped)

	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Equal(t, "sheet unavailable", appErr.Error())
}
