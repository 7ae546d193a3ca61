// Package errors defines the error values shared by the blocksort packages.
//
// The stream pipeline, the sorter and the scratch file helpers all report
// through these types so that errors.Is and errors.As work across package
// boundaries.
package errors

import (
	"errors"
	"fmt"
)

// Pipeline usage errors
var (
	ErrStreamExhausted = errors.New("blocksort: stream is exhausted")
	ErrLiveBlock       = errors.New("blocksort: link closed while holding a live block")
	ErrAlreadyPoisoned = errors.New("blocksort: stream already poisoned")
	ErrRewoundTooFar   = errors.New("blocksort: rewindable stream rewound too far")
	ErrCompleteTwice   = errors.New("blocksort: chain loop completed twice")
	ErrChainStopped    = errors.New("blocksort: chain is not running")
)

// Sort usage errors
var (
	ErrNotIngested  = errors.New("blocksort: input chain has not finished")
	ErrSortConsumed = errors.New("blocksort: sort output already taken")
)

// ErrInternal is matched by every InternalError.
var ErrInternal = errors.New("blocksort: internal consistency failure")

// ConfigError represents an error in configuration parameters
type ConfigError struct {
	// Field is the name of the configuration field that's invalid
	Field string
	// Value is the invalid value provided
	Value interface{}
	// Reason explains why the value is invalid
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field %s (value: %v): %s", e.Field, e.Value, e.Reason)
}

// NewConfigError creates a ConfigError
func NewConfigError(field string, value interface{}, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// ResourceError reports a failed memory allocation. Requested carries the
// size so an operator can retry with a smaller budget.
type ResourceError struct {
	Resource  string
	Requested int
	Err       error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource error (%s): failed to allocate %d bytes: %v", e.Resource, e.Requested, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a ResourceError wrapping the underlying error
func NewResourceError(err error, resource string, requested int) error {
	return &ResourceError{Resource: resource, Requested: requested, Err: err}
}

// NewDiskError creates a DiskError wrapping the underlying I/O error
func NewDiskError(err error, operation, path string) error {
	if path != "" {
		return fmt.Errorf("disk error during %s on %s: %w", operation, path, err)
	}
	return fmt.Errorf("disk error during %s: %w", operation, err)
}

// InternalError is a bug in the engine: the run accounting or the block
// circulation no longer adds up and the output cannot be trusted.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return "blocksort: bug: " + e.Reason
}

// Is reports true for ErrInternal.
func (e *InternalError) Is(target error) bool {
	return target == ErrInternal
}

// NewInternalError creates an InternalError with a formatted reason
func NewInternalError(format string, args ...interface{}) error {
	return &InternalError{Reason: fmt.Sprintf(format, args...)}
}

// ReadSizeError is returned when input ends in the middle of a record.
type ReadSizeError struct {
	Got       int
	EntrySize int
}

func (e *ReadSizeError) Error() string {
	return fmt.Sprintf("input ended with %d bytes, not a multiple of %d", e.Got, e.EntrySize)
}

// ComparisonError represents an error that occurred during item comparison
type ComparisonError struct {
	// Cause is the original panic or error that occurred during comparison
	Cause interface{}
	// Context provides additional information about when the comparison failed
	Context string
}

func (e *ComparisonError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("comparison panic in %s: %v", e.Context, e.Cause)
	}
	return fmt.Sprintf("comparison panic: %v", e.Cause)
}

func (e *ComparisonError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// NewComparisonError creates a ComparisonError
func NewComparisonError(cause interface{}, context string) error {
	return &ComparisonError{Cause: cause, Context: context}
}

// PanicError is a panic recovered at a pipeline stage boundary.
type PanicError struct {
	Stage string
	Cause interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in stage %s: %v", e.Stage, e.Cause)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}
