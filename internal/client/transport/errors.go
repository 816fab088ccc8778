package transport

import (
	"errors"
	"fmt"
)

// ErrSessionExpired marks a credential the server (or a local check)
// rejected. The guard's one-shot redirect has already been triggered by the
// time a caller sees this; callers must not surface it as a generic error.
var ErrSessionExpired = errors.New("session expired")

// APIError is a non-200 application code inside a well-formed response
// envelope. Its message is meant for the user.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with code %d", e.Code)
	}
	return e.Message
}

// NetworkError is a transport-level failure: connection refused, timeout,
// or a non-2xx HTTP status without an application envelope.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
