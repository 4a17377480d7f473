package apperror_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"vibecall/backend/internal/apperror"
)

func TestIs_MatchesWrappedError(t *testing.T) {
	err := fmt.Errorf("join: %w", apperror.AlreadyQueued("u1"))

	assert.True(t, apperror.Is(err, apperror.CodeAlreadyQueued))
	assert.False(t, apperror.Is(err, apperror.CodeNotFound))
	assert.Equal(t, apperror.CodeAlreadyQueued, apperror.CodeOf(err))
}

func TestCodeOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, apperror.CodeInternal, apperror.CodeOf(errors.New("boom")))
}

func TestValidation_NamesField(t *testing.T) {
	err := apperror.Validation("reportReason", "required when action is report")

	assert.Equal(t, "reportReason", err.Field)
	assert.Contains(t, err.Error(), "field=reportReason")
}

func TestProvisioning_IsRetryableAndUnwraps(t *testing.T) {
	cause := errors.New("provider down")
	err := apperror.Provisioning(cause)

	assert.True(t, err.Retryable)
	assert.ErrorIs(t, err, cause)
}
