package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrStateNotFound = errors.New("site state not found")
	ErrNoActiveTab   = errors.New("no active tab found")
)

// NetworkError is a failed backend call: transport failure, timeout or non-2xx status.
type NetworkError struct {
	Op         string // backend endpoint, e.g. "/check"
	StatusCode int    // 0 when no response was received
	Timeout    bool
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ClientError reports a 4xx response.
func (e *NetworkError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// ServerError reports a 5xx response.
func (e *NetworkError) ServerError() bool {
	return e.StatusCode >= 500
}

// NewTransportError classifies err from an http.Client call.
func NewTransportError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Timeout: isTimeout(err), Err: err}
}

// NewStatusError records a non-2xx response.
func NewStatusError(op string, status int) *NetworkError {
	return &NetworkError{Op: op, StatusCode: status}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StreamParseError is a crawl stream line that could not be decoded.
type StreamParseError struct {
	Line string
	Err  error
}

func (e *StreamParseError) Error() string {
	return fmt.Sprintf("malformed stream event %q: %v", e.Line, e.Err)
}

func (e *StreamParseError) Unwrap() error { return e.Err }
