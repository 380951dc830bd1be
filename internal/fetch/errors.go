package fetch

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUpstreamUnavailable = errors.New("source: host unreachable or transport failure")
	ErrBadStatus           = errors.New("source: unexpected HTTP status")
	ErrTimeout             = errors.New("source: request timed out")
	ErrDecompress          = errors.New("source: payload could not be decompressed")
	ErrEmptyPayload        = errors.New("source: payload is empty")
	ErrTooLarge            = errors.New("source: payload exceeds size limit")
)

// SourceError is a rich error type that wraps the sentinel errors with context.
type SourceError struct {
	Sentinel error
	Op       string // download|decompress
	URL      string // sanitized
	Status   int
	Err      error // Nested lower-level error (e.g. net.Error)
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Op, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// Outcome returns a short metrics label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrBadStatus):
		return "bad_status"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrDecompress):
		return "decompress"
	case errors.Is(err, ErrEmptyPayload):
		return "empty"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	var se *SourceError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Sentinel {
	case ErrUpstreamUnavailable, ErrTimeout:
		return true
	case ErrBadStatus:
		return se.Status >= 500 || se.Status == 429
	default:
		return false
	}
}
