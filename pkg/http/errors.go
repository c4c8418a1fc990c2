package http

import (
	"errors"
	"fmt"
)

var (
	// ErrConflictingBody is returned when more than one body kind is set on a request.
	ErrConflictingBody = errors.New("request options: only one of JSON body, raw content or multipart fields may be set")
	// ErrRawTarget is returned when a raw-response request is passed to a decoding call.
	ErrRawTarget = errors.New("request options: raw response requested, use Do or Raw")
	// ErrMissingPathParam is returned by FormatPath when a placeholder has no value.
	ErrMissingPathParam = errors.New("missing path parameter")
)

// TimeoutError reports that an attempt hit its deadline before a response was read.
type TimeoutError struct {
	Method string
	URL    string
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: request timed out: %v", e.Method, e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ConnectionError reports a transport failure other than a timeout.
type ConnectionError struct {
	Method string
	URL    string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: connection error: %v", e.Method, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StatusError is an HTTP status >= 400. Code and Msg are filled when the
// error body is a platform envelope.
type StatusError struct {
	StatusCode int
	Code       int
	Msg        string
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("lark: http %d (code %d): %s", e.StatusCode, e.Code, e.Msg)
	}
	return fmt.Sprintf("lark: http %d: %s", e.StatusCode, truncate(e.Body, 512))
}

// BadResponseError is a successful HTTP response whose body is not a valid envelope
// or does not decode into the requested type.
type BadResponseError struct {
	Reason string
	Body   []byte
	Err    error
}

func (e *BadResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lark: bad response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("lark: bad response: %s", e.Reason)
}

func (e *BadResponseError) Unwrap() error { return e.Err }

// RemoteAPIError is a logical failure: HTTP success with a nonzero envelope code.
type RemoteAPIError struct {
	Code int
	Msg  string
	Body []byte

	// Detail holds the envelope's optional "error" object.
	Detail any
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("lark: api error %d: %s", e.Code, e.Msg)
}

// IsRetryable reports whether err is a classification the executor retries.
func IsRetryable(err error) bool {
	var timeoutErr *TimeoutError
	var connErr *ConnectionError
	var statusErr *StatusError
	switch {
	case errors.As(err, &timeoutErr), errors.As(err, &connErr):
		return true
	case errors.As(err, &statusErr):
		return statusErr.StatusCode >= 500
	}
	return false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
