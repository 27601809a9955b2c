package melcloud

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies a client failure.
type Category int

const (
	// CategoryNetwork covers connection and transport failures.
	CategoryNetwork Category = iota
	// CategoryAPI covers non-2xx responses and service-reported error payloads.
	CategoryAPI
	// CategoryAuth marks operations attempted without an active session. No request is made.
	CategoryAuth
	// CategoryUnknown is the fallback for anything else.
	CategoryUnknown
)

func (c Category) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryAPI:
		return "api"
	case CategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by all Client operations.
type Error struct {
	Category Category
	Message  string
	Err      error
}

// newError builds an Error, filling in any missing parts: the zero Category is
// CategoryNetwork, an empty message becomes a generic one and a nil cause is
// derived from the message.
func newError(category Category, message string, err error) *Error {
	if message == "" {
		message = "network error occurred"
	}
	if err == nil {
		err = errors.New(message)
	}
	return &Error{Category: category, Message: message, Err: err}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Category, so callers can test for a
// class of failure without constructing the exact message.
func (e *Error) Is(target error) bool {
	var err *Error
	if !errors.As(target, &err) {
		return false
	}
	return e.Category == err.Category && (err.Message == "" || e.Message == err.Message)
}

// ErrNotLoggedIn is returned by authenticated operations when no session
// exists. It is a precondition failure: no request has been made.
var ErrNotLoggedIn = &Error{Category: CategoryAuth, Message: "Not logged in"}

func transportError(err error) *Error {
	return newError(CategoryNetwork, fmt.Sprintf("API request error: %s", err.Error()), err)
}

func statusError(statusCode int) *Error {
	message := fmt.Sprintf("API error: %d %s", statusCode, http.StatusText(statusCode))
	return newError(CategoryAPI, message, nil)
}
