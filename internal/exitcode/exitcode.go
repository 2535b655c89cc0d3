package exitcode

import (
	"context"
	"errors"
	"os"
	"strings"

	apperrors "github.com/felixgeelhaar/apporte/internal/errors"
	"github.com/felixgeelhaar/apporte/internal/platform"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// Denied indicates a permission or role check that answered no
	Denied = 3

	// ConfigError indicates an invalid configuration or token storage
	ConfigError = 4

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// Interrupted indicates the command was cancelled with ctrl+c
	Interrupted = 130
)

// Error carries an explicit exit code. Commands return it when the exit
// status itself is the answer.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return GetExitCodeDescription(e.Code)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithCode attaches code to err. A nil err still yields a non-nil error.
func WithCode(code int, err error) error {
	return &Error{Code: code, Err: err}
}

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}

	if errors.Is(err, context.Canceled) {
		return Interrupted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NetworkError
	}

	code := string(apperrors.CodeOf(err))
	switch {
	case code == string(apperrors.ErrCodeAPITransport):
		return NetworkError
	case code == string(apperrors.ErrCodePermissionDenied):
		return Denied
	case strings.HasPrefix(code, "AUTH-"):
		return AuthError
	case strings.HasPrefix(code, "CONFIG-"), strings.HasPrefix(code, "STORE-"):
		return ConfigError
	}

	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Transport():
			return NetworkError
		case apiErr.StatusCode == 401, apiErr.StatusCode == 403:
			return AuthError
		}
		return GeneralError
	}

	errMsg := strings.ToLower(err.Error())

	// Usage errors as reported by cobra
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts ") {
		return UsageError
	}
	if strings.Contains(errMsg, "invalid argument") {
		return UsageError
	}

	// Network errors
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NetworkError
	}

	// Default to general error
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case Denied:
		return "Check denied"
	case ConfigError:
		return "Configuration or token storage error"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
