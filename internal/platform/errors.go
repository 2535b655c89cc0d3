package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const genericErrorMessage = "An error occurred"

// ErrUnauthorized matches any APIError produced by a 401 response.
var ErrUnauthorized = errors.New("Unauthorized")

// APIError is returned for every failed request: non-2xx responses and
// transport failures alike. StatusCode is zero when no response arrived.
type APIError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// Is reports 401 errors as ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Transport reports whether the request failed before a response arrived.
func (e *APIError) Transport() bool {
	return e.StatusCode == 0
}

// errorBody is the server's JSON error envelope.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newAPIError(status int, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return &APIError{StatusCode: status, Message: genericErrorMessage, Cause: err}
	}

	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}

	return &APIError{StatusCode: status, Message: msg}
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
