package services

import (
	"errors"
	"fmt"
)

// Causes carried by AdapterError
var (
	ErrCardNotFound     = errors.New("card not found")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrNoPrice          = errors.New("no price on the only record")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUpstreamStatus   = errors.New("unexpected upstream status")
)

// ErrResolutionFailed is wrapped by every ResolutionError
var ErrResolutionFailed = errors.New("no adapter or cache entry could resolve the card")

// AdapterError is a failure of a single provider. The resolver recovers from it
// by moving to the next adapter in the chain.
type AdapterError struct {
	Adapter string
	Query   string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter failed for %q: %v", e.Adapter, e.Query, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

func adapterErr(adapter, query string, err error) error {
	return &AdapterError{Adapter: adapter, Query: query, Err: err}
}

// ResolutionError means every adapter and the Local Cache came up empty
type ResolutionError struct {
	Query string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %q: %v", e.Query, ErrResolutionFailed)
}

func (e *ResolutionError) Unwrap() error { return ErrResolutionFailed }

// PersistenceError wraps a failed write to the history or cache tables.
// The failed transaction leaves prior state untouched.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
