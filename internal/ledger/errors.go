package ledger

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated signals an HTTP 401 from the Expense API. Callers treat
// it as a login redirect, never as a retryable in-place failure.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrNotFound signals that the expense (or note index) does not exist.
var ErrNotFound = errors.New("not found")

// APIError carries a non-2xx response. Message is the server-provided text
// verbatim where available so screens can surface it unchanged.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("expense api: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("expense api: request failed (status %d)", e.StatusCode)
}

// UserMessage returns the text shown to users: the server message when
// present, a generic fallback otherwise.
func (e *APIError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return "Something went wrong"
}
