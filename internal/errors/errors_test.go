package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/verse-scribe/internal/types"
)

func TestTaxonomyStatusCodes(t *testing.T) {
	cause := stderrors.New("connection reset")
	tests := []struct {
		name      string
		err       *CategorizedError
		status    int
		code      string
		retryable bool
	}{
		{"auth required", NewAuthRequiredError("missing token"), http.StatusUnauthorized, CodeAuthRequired, false},
		{"profile not found", NewProfileNotFoundError("auth-1"), http.StatusNotFound, CodeProfileNotFound, true},
		{"persistence", NewPersistenceError("daily credits", cause), http.StatusServiceUnavailable, CodePersistenceFailure, true},
		{"verse source", NewVerseSourceUnavailableError("genesis", 1, cause), http.StatusBadGateway, CodeVerseSourceUnavailable, true},
		{"daily limit", NewDailyLimitError("2026-01-31", 300, 300), http.StatusConflict, CodeDailyLimitReached, false},
		{"invalid parameter", NewInvalidParameterError("month", "bad"), http.StatusBadRequest, CodeInvalidParameter, false},
		{"not found", NewNotFoundError("session", "x"), http.StatusNotFound, CodeNotFound, false},
		{"internal", NewInternalError("boom", cause), http.StatusInternalServerError, CodeInternalError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, GetHTTPStatusCode(tt.err))
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestCategorizeWrapped(t *testing.T) {
	inner := NewPersistenceError("progress", stderrors.New("timeout"))
	wrapped := fmt.Errorf("record transcription: %w", inner)

	assert.Same(t, inner, Categorize(wrapped))
	assert.True(t, IsPersistenceFailure(wrapped))
	assert.False(t, IsAuthRequired(wrapped))
	assert.True(t, stderrors.Is(wrapped, inner))
}

func TestCategorizeServiceError(t *testing.T) {
	err := &types.ServiceError{Code: CodeAuthRequired, Message: "expired"}
	assert.True(t, IsAuthRequired(err))
	assert.True(t, IsUserError(err))

	unknown := Categorize(stderrors.New("plain"))
	assert.Equal(t, CodeInternalError, unknown.Code)
	assert.True(t, IsSystemError(unknown))
	assert.Nil(t, Categorize(nil))
}

func TestToServiceError(t *testing.T) {
	svc := NewDailyLimitError("2026-01-31", 300, 300).ToServiceError()
	assert.Equal(t, CodeDailyLimitReached, svc.Code)
	assert.Equal(t, 300, svc.Details["limit"])
}
