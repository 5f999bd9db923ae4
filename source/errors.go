package source

import "fmt"

// Kind classifies a fetch failure
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindConnection   Kind = "connection"
	KindRateLimited  Kind = "rate_limited"
	KindUnauthorized Kind = "unauthorized"
	KindHTTP         Kind = "http"
	KindUnknown      Kind = "unknown"
)

// FetchError is the single error type raised by sources on any transport
// problem, carrying a human-readable reason
type FetchError struct {
	Err    error
	Kind   Kind
	Reason string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("unable to fetch rates (%s): %s", e.Kind, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// newFetchError creates a classified fetch error
func newFetchError(kind Kind, reason string, err error) *FetchError {
	return &FetchError{
		Kind:   kind,
		Reason: reason,
		Err:    err,
	}
}
