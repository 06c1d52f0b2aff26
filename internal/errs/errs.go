// Package errs defines the error taxonomy shared by the extraction collaborators.
//
// Collaborator clients return these errors; the extraction pipeline converts every
// one of them into "this strategy produced nothing" at the strategy boundary.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNoURL is returned when an extraction is requested without a URL.
	ErrNoURL = errors.New("no URL supplied")

	// ErrNoContent marks a strategy that ran but produced no usable text.
	ErrNoContent = errors.New("no content")

	// ErrExhausted marks an extraction where every strategy for the content type failed.
	// It is recorded as an outcome, never returned to callers.
	ErrExhausted = errors.New("all strategies exhausted")

	// ErrUnavailable marks a collaborator that is not configured or not reachable.
	ErrUnavailable = errors.New("service unavailable")
)

// FetchError reports a network failure, timeout, or non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewStatusError builds a FetchError for an unexpected HTTP status.
func NewStatusError(url string, status int) *FetchError {
	return &FetchError{URL: url, StatusCode: status}
}

// ParseError reports malformed markup, JSON, or transcript payloads.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse " + e.What
	}
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTimeout reports whether err was caused by a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	var fe *FetchError
	var pe *ParseError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoContent):
		return "empty"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case IsTimeout(err):
		return "timeout"
	case errors.As(err, &fe):
		return "fetch_error"
	case errors.As(err, &pe):
		return "parse_error"
	default:
		return "error"
	}
}
