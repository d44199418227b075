package models

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired means there is no signed-in session; callers redirect
	// instead of showing an in-page error.
	ErrAuthRequired = errors.New("authentication required")

	// ErrSubmissionInFlight rejects a submission while the same user still
	// waits for a previous one.
	ErrSubmissionInFlight = errors.New("a prediction is already in progress")

	ErrMalformedResponse = errors.New("malformed inference response")
)

// TransportError is a network failure or a non-2xx status from a remote service
type TransportError struct {
	StatusCode int // zero for network failures
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API Connection Interrupted (%d)", e.StatusCode)
	}
	return fmt.Sprintf("API Connection Interrupted: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is a contract violation by the inference endpoint
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedResponse, e.Reason)
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// IsRemoteFailure reports whether err should be shown as the retryable
// connection banner.
func IsRemoteFailure(err error) bool {
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, ErrMalformedResponse)
}
