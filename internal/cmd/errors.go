package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/felixgeelhaar/apporte/internal/errors"
	"github.com/felixgeelhaar/apporte/internal/platform"
)

// ErrorWithSuggestion wraps an error with actionable recovery suggestions
type ErrorWithSuggestion struct {
	Message     string
	Suggestions []string
	err         error
}

func (e *ErrorWithSuggestion) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}

	if e.err != nil {
		b.WriteString("\n\nDetails: ")
		b.WriteString(e.err.Error())
	}

	return b.String()
}

func (e *ErrorWithSuggestion) Unwrap() error {
	return e.err
}

// NewErrorWithSuggestions creates an error with recovery suggestions
func NewErrorWithSuggestions(msg string, err error, suggestions ...string) error {
	return &ErrorWithSuggestion{
		Message:     msg,
		Suggestions: suggestions,
		err:         err,
	}
}

// UnreachableError creates a helpful error when the API cannot be reached
func UnreachableError(baseURL string, err error) error {
	return apperrors.Wrap(apperrors.ErrCodeAPITransport, fmt.Sprintf("cannot reach the Apporte API at %s", baseURL), err).
		WithSuggestion("Check that the API is running and the URL is right: apporte config get api_url").
		WithSuggestion("Point at another server: --api-url or APPORTE_API_URL")
}

// InvalidIDError creates a helpful error for a malformed user id argument
func InvalidIDError(arg string) error {
	return NewErrorWithSuggestions(
		fmt.Sprintf("invalid argument %q: user id must be a positive number", arg),
		nil,
		"List users with their ids: apporte users list",
	)
}

// InputRequiredError creates a helpful error when a value is missing and
// prompting is off.
func InputRequiredError(flag string) error {
	return apperrors.New(apperrors.ErrCodeCredentialsRequired, fmt.Sprintf("--%s is required", flag)).
		WithSuggestion(fmt.Sprintf("Pass --%s, or run in a terminal without --no-input to be prompted", flag))
}

// loginError keeps the server's message and tags it for the exit code.
func loginError(baseURL string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), apperrors.CodeOf(err) != "":
		return err
	case isTransport(err):
		return UnreachableError(baseURL, err)
	}
	return apperrors.Wrap(apperrors.ErrCodeLoginFailed, "login failed", err).
		WithSuggestion("Check your email and password").
		WithSuggestion("Forgot it? Run 'apporte auth forgot-password --email <email>'")
}

// requestError tags a failed API call made on behalf of a session.
func requestError(action string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), apperrors.CodeOf(err) != "":
		return err
	case isTransport(err):
		return apperrors.Wrap(apperrors.ErrCodeAPITransport, action+" failed", err).
			WithSuggestion("Check that the API is reachable: apporte config get api_url")
	case platform.IsUnauthorized(err):
		return apperrors.NewSessionExpiredError(err)
	}
	return apperrors.Wrap(apperrors.ErrCodeAPIRequest, action+" failed", err)
}

func isTransport(err error) bool {
	var apiErr *platform.APIError
	return errors.As(err, &apiErr) && apiErr.Transport()
}
