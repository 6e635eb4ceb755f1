package external

import "errors"

var (
	// ErrUnavailable indicates the remote service is unreachable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrRetryExhausted indicates all retry attempts have been exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrRemoteNotFound is a 404 from the remote service.
	ErrRemoteNotFound = errors.New("remote record not found")
)
