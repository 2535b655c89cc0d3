package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Session errors (AUTH-001 to AUTH-099)
	ErrCodeSessionExpired       ErrorCode = "AUTH-001"
	ErrCodeNotAuthenticated     ErrorCode = "AUTH-002"
	ErrCodeLoginFailed          ErrorCode = "AUTH-003"
	ErrCodeTwoFactorRejected    ErrorCode = "AUTH-004"
	ErrCodeTwoFactorRequired    ErrorCode = "AUTH-005"
	ErrCodeMissingAccessToken   ErrorCode = "AUTH-006"
	ErrCodePermissionDenied     ErrorCode = "AUTH-007"
	ErrCodeCredentialsRequired  ErrorCode = "AUTH-008"
	ErrCodeInvalidTwoFactorCode ErrorCode = "AUTH-009"

	// API errors (API-001 to API-099)
	ErrCodeAPIRequest   ErrorCode = "API-001"
	ErrCodeAPITransport ErrorCode = "API-002"
	ErrCodeAPIDecode    ErrorCode = "API-003"
	ErrCodeAPIEncode    ErrorCode = "API-004"

	// Token storage errors (STORE-001 to STORE-099)
	ErrCodeStoreRead    ErrorCode = "STORE-001"
	ErrCodeStoreWrite   ErrorCode = "STORE-002"
	ErrCodeStoreBackend ErrorCode = "STORE-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigLoad    ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid ErrorCode = "CONFIG-002"
	ErrCodeConfigWrite   ErrorCode = "CONFIG-003"
	ErrCodeConfigKey     ErrorCode = "CONFIG-004"
)

// AppError represents an enhanced error with code, suggestions, and documentation
type AppError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *AppError) WithDocs(url string) *AppError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err's chain contains an AppError with code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &AppError{Code: code})
}

// Common error constructors for frequently used errors

// NewSessionExpiredError creates the error shown after the API rejected the stored token
func NewSessionExpiredError(cause error) *AppError {
	return Wrap(ErrCodeSessionExpired, "session expired", cause).
		WithSuggestion("Run 'apporte auth login' to sign in again").
		WithDocs("https://github.com/felixgeelhaar/apporte#authentication")
}

// NewNotAuthenticatedError creates the error returned by protected commands without a session
func NewNotAuthenticatedError() *AppError {
	return New(ErrCodeNotAuthenticated, "not logged in").
		WithSuggestion("Run 'apporte auth login' to sign in").
		WithSuggestion("Check 'apporte auth status' to inspect the stored session")
}

// NewTwoFactorRejectedError creates the error for a rejected second-factor code
func NewTwoFactorRejectedError(cause error) *AppError {
	return Wrap(ErrCodeTwoFactorRejected, "two-factor code rejected", cause).
		WithSuggestion("Enter the current code from your authenticator app").
		WithSuggestion("Check that your device clock is in sync")
}

// NewTwoFactorRequiredError creates the error for a login that stopped at the second factor
func NewTwoFactorRequiredError(userID int64) *AppError {
	return New(ErrCodeTwoFactorRequired, fmt.Sprintf("two-factor authentication required for user %d", userID)).
		WithSuggestion(fmt.Sprintf("Run 'apporte auth verify --user-id %d --code <code>'", userID))
}

// NewPermissionDeniedError creates an error for a failed local permission check
func NewPermissionDeniedError(permission string) *AppError {
	return New(ErrCodePermissionDenied, fmt.Sprintf("missing permission: %s", permission)).
		WithSuggestion("Ask an administrator to grant the permission to your role").
		WithSuggestion("Run 'apporte auth status' to list your permissions")
}

// NewStoreWriteError creates an error for a failed token persistence
func NewStoreWriteError(backend string, cause error) *AppError {
	return Wrap(ErrCodeStoreWrite, fmt.Sprintf("failed to persist token to %s storage", backend), cause).
		WithSuggestion("Check permissions of the credentials file (~/.apporte/credentials.json)").
		WithSuggestion("Use --storage memory to keep the session in this process only")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(key string, details string) *AppError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration value for %s: %s", key, details)).
		WithSuggestion("Run 'apporte config view' to inspect the effective configuration").
		WithSuggestion(fmt.Sprintf("Run 'apporte config set %s <value>' to fix it", key))
}
