package usecase

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCancelled is the cause attached to a refresh session's context
	// when it is stopped or superseded.
	ErrCancelled = errors.New("refresh cancelled")

	ErrHoldingNotFound = errors.New("holding not found")
	ErrInvalidRange    = errors.New("unknown range")
	ErrDuplicateID     = errors.New("holding id already exists")
)

// IsCancellation reports whether err came from a cancelled session
// rather than a provider failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// FetchError is a provider failure for one holding.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError rejects input. Index is the offending snapshot item,
// or -1 when the problem is not tied to one item; Field names the
// offending field when known.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Unwrap() error { return e.Err }

// InvalidRange rejects a range name; it matches both ErrInvalidRange and
// *ValidationError.
func InvalidRange(name string) error {
	return &ValidationError{Index: -1, Field: "range", Reason: fmt.Sprintf("%s %q", ErrInvalidRange, name), Err: ErrInvalidRange}
}

func (e *ValidationError) Error() string {
	switch {
	case e.Index >= 0:
		return fmt.Sprintf("Invalid portfolio item at index %d: %s", e.Index, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	default:
		return "Invalid portfolio format: " + e.Reason
	}
}

// FatalLoopError wraps a panic that escaped the batching loop.
type FatalLoopError struct {
	Cause interface{}
}

func (e *FatalLoopError) Error() string {
	return fmt.Sprintf("refresh loop failed: %v", e.Cause)
}

func (e *FatalLoopError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}
