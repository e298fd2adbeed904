package fetcher

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyURL = errors.New("url cannot be empty")
	// ErrStreamUnavailable is returned when the response has no readable body.
	ErrStreamUnavailable = errors.New("no readable stream")
	// ErrPayloadTooLarge is returned as soon as the streamed bytes pass the ceiling.
	ErrPayloadTooLarge = errors.New("file too large")
)

// HTTPStatusError reports a non-success response status.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("server returned non-success status: %d", e.StatusCode)
}

// TransportError wraps network level failures: bad URLs, refused connections,
// timeouts and errors while reading the body.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
