package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("withdraw: %w", Validation(ReasonBelowMinimum, "minimum withdrawal is %d", 300))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, ReasonBelowMinimum, ReasonOf(err))
	assert.True(t, HasReason(err, ReasonBelowMinimum))
	assert.Contains(t, err.Error(), "minimum withdrawal is 300")
}

func TestReasonOfPlainError(t *testing.T) {
	assert.Equal(t, "", ReasonOf(errors.New("boom")))
	assert.Equal(t, "", ReasonOf(nil))
}
