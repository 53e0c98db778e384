// Package errors defines the categorized error taxonomy shared by storage,
// services and the HTTP layer.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/verse-scribe/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthorization represents missing or invalid credentials
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents conflict errors
	CategoryConflict ErrorCategory = "conflict"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryPersistence represents ledger write failures
	CategoryPersistence ErrorCategory = "persistence"
	// CategoryVerseSource represents verse text lookup failures
	CategoryVerseSource ErrorCategory = "verse_source"
	// CategoryDatabase represents database read errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// Error codes surfaced to clients
const (
	CodeAuthRequired           = "AUTH_REQUIRED"
	CodeProfileNotFound        = "PROFILE_NOT_FOUND"
	CodePersistenceFailure     = "PERSISTENCE_FAILURE"
	CodeVerseSourceUnavailable = "VERSE_SOURCE_UNAVAILABLE"
	CodeDailyLimitReached      = "DAILY_LIMIT_REACHED"
	CodeInvalidParameter       = "INVALID_PARAMETER"
	CodeNotFound               = "NOT_FOUND"
	CodeForbidden              = "FORBIDDEN"
	CodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	CodeDatabaseError          = "DATABASE_ERROR"
	CodeCacheError             = "CACHE_ERROR"
	CodeInternalError          = "INTERNAL_ERROR"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// User Input Errors (4xx)

// NewAuthRequiredError is returned when no valid session accompanies a request.
// Clients treat it as an app-wide redirect to login and never retry it.
func NewAuthRequiredError(reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       CodeAuthRequired,
		Message:    "authentication required",
		Details: map[string]interface{}{
			"reason": reason,
		},
	}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       CodeForbidden,
		Message:    message,
	}
}

// NewProfileNotFoundError creates a missing profile error
func NewProfileNotFoundError(authUserID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeProfileNotFound,
		Message:    "profile not found",
		Details: map[string]interface{}{
			"authUserId": authUserID,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidParameter,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewDailyLimitError is returned when a capped award would exceed the daily limit
func NewDailyLimitError(date string, earned, limit int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       CodeDailyLimitReached,
		Message:    fmt.Sprintf("daily credit limit reached for %s", date),
		Details: map[string]interface{}{
			"date":   date,
			"earned": earned,
			"limit":  limit,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimitExceeded,
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// System Errors (5xx)

// NewPersistenceError wraps a failed ledger write. It is non-fatal: the
// caller may retry the same verse and the ledger stays authoritative.
func NewPersistenceError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPersistence,
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodePersistenceFailure,
		Message:    fmt.Sprintf("failed to persist %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewVerseSourceUnavailableError wraps a failed verse text lookup
func NewVerseSourceUnavailableError(book string, chapter int, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryVerseSource,
		StatusCode: http.StatusBadGateway,
		Code:       CodeVerseSourceUnavailable,
		Message:    fmt.Sprintf("verse text unavailable for %s %d", book, chapter),
		Cause:      cause,
		Details: map[string]interface{}{
			"book":    book,
			"chapter": chapter,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeDatabaseError,
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeCacheError,
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	// If already categorized (possibly wrapped), return as-is
	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	// If it's a ServiceError, convert it
	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	// Default to internal error
	return NewInternalError("unexpected error", err)
}

// categorizeServiceError categorizes a ServiceError
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	category, status := CategorySystem, http.StatusInternalServerError
	switch err.Code {
	case CodeAuthRequired:
		category, status = CategoryAuthorization, http.StatusUnauthorized
	case CodeForbidden:
		category, status = CategoryAuthorization, http.StatusForbidden
	case CodeProfileNotFound, CodeNotFound:
		category, status = CategoryNotFound, http.StatusNotFound
	case CodeInvalidParameter:
		category, status = CategoryValidation, http.StatusBadRequest
	case CodeDailyLimitReached:
		category, status = CategoryConflict, http.StatusConflict
	case CodePersistenceFailure:
		category, status = CategoryPersistence, http.StatusServiceUnavailable
	case CodeVerseSourceUnavailable:
		category, status = CategoryVerseSource, http.StatusBadGateway
	}
	return &CategorizedError{
		Category:   category,
		StatusCode: status,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryPersistence, CategoryVerseSource, CategoryDatabase, CategoryCache:
		return true
	case CategoryNotFound:
		// A profile may be created by a concurrent first login
		return catErr.Code == CodeProfileNotFound
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsAuthRequired reports whether err must trigger the login redirect
func IsAuthRequired(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Code == CodeAuthRequired
}

// IsPersistenceFailure reports whether err is a non-fatal ledger write failure
func IsPersistenceFailure(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == CategoryPersistence
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 500
}
