package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend calls.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedURL indicates the base URL and path do not form an absolute URL.
	ErrMalformedURL = errors.New("malformed URL")

	// ErrUnsuccessfulStatusCode indicates the server answered with a status
	// other than 200. *ErrorMessage also matches it.
	ErrUnsuccessfulStatusCode = errors.New("unsuccessful status code")

	// ErrRequestTimeout indicates the request did not complete within its
	// timeout. Callers show a dedicated message for it.
	ErrRequestTimeout = errors.New("request timed out")
)

// ErrorMessage is the error body returned with a non-200 status.
type ErrorMessage struct {
	Message    *string `json:"errorMessage"`
	StatusCode int     `json:"-"`
}

func (e *ErrorMessage) Error() string {
	if e.Message == nil {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return *e.Message
}

// Is makes every server error match ErrUnsuccessfulStatusCode.
func (e *ErrorMessage) Is(target error) bool {
	return target == ErrUnsuccessfulStatusCode
}

// ServerMessage returns the server-provided message of err, if any.
func ServerMessage(err error) (string, bool) {
	var msg *ErrorMessage
	if errors.As(err, &msg) && msg.Message != nil {
		return *msg.Message, true
	}
	return "", false
}
