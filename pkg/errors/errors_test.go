package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlreadyDecidedMatchesInvalidTransition(t *testing.T) {
	err := Clone(ErrAlreadyDecided, "staff decision already recorded")

	assert.True(t, errors.Is(err, ErrAlreadyDecided))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.False(t, errors.Is(Clone(ErrInvalidTransition, "x"), ErrAlreadyDecided))
	assert.Equal(t, "ALREADY_DECIDED", FromError(fmt.Errorf("approve: %w", err)).Code)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	got := FromError(cause)

	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.ErrorIs(t, got, cause)
	assert.Nil(t, FromError(nil))
}

func TestCloneKeepsOriginal(t *testing.T) {
	c := Clone(ErrNotFound, "leave application not found")
	assert.Equal(t, "leave application not found", c.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.True(t, errors.Is(c, ErrNotFound))
}
