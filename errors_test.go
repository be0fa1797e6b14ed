package tokens_test

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	tokens "github.com/goliatone/go-tokens"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, tokens.IsTokenExpiredError(tokens.ErrTokenExpired))
	assert.True(t, tokens.IsMalformedError(tokens.ErrTokenMalformed))
	assert.True(t, tokens.IsUnauthorizedError(tokens.ErrTokenUnauthorized))
	assert.True(t, tokens.IsAlreadyPendingError(tokens.ErrAlreadyPending))
	assert.True(t, tokens.IsDeliveryFailedError(tokens.ErrDeliveryFailed))

	assert.False(t, tokens.IsTokenExpiredError(nil))
	assert.False(t, tokens.IsTokenExpiredError(tokens.ErrTokenUnauthorized))
	assert.False(t, tokens.IsUnauthorizedError(tokens.ErrTokenExpired))
}

func TestErrorClassifierUsesOutermostCode(t *testing.T) {
	wrapped := goerrors.Wrap(tokens.ErrTokenExpired, goerrors.CategoryOperation, "operation failed")

	// classification rides on the outermost rich error; a re-categorized
	// wrapper is a different failure
	assert.False(t, tokens.IsTokenExpiredError(wrapped))
	assert.True(t, tokens.IsTokenExpiredError(tokens.ErrTokenExpired))
}

func TestNotFoundErrorsAreCategorized(t *testing.T) {
	assert.True(t, goerrors.IsNotFound(tokens.ErrRecordNotFound))
	assert.True(t, goerrors.IsNotFound(tokens.ErrSubjectNotFound))
	assert.False(t, goerrors.IsNotFound(tokens.ErrRecordConflict))
}
