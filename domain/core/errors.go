package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrSessionNotFound  = fmt.Errorf("%w: session", ErrNotFound)
	ErrDownloadNotFound = fmt.Errorf("%w: download", ErrNotFound)
	ErrSnapshotNotFound = fmt.Errorf("%w: snapshot", ErrNotFound)

	// Precondition errors: rejected before any mutation happens
	ErrPrecondition           = errors.New("precondition failed")
	ErrInvalidColumnSelection = fmt.Errorf("%w: invalid column selection", ErrPrecondition)
	ErrColumnOutOfRange       = fmt.Errorf("%w: column index out of range", ErrPrecondition)
	ErrNoMatrixLoaded         = fmt.Errorf("%w: no matrix loaded", ErrPrecondition)
	ErrEmptySelection         = fmt.Errorf("%w: empty sample selection", ErrPrecondition)

	// Input errors
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnknownValueType    = fmt.Errorf("%w: unknown value type", ErrInvalidInput)
	ErrUnknownTestKind     = fmt.Errorf("%w: unknown two-group test", ErrInvalidInput)
	ErrUnknownFilterType   = fmt.Errorf("%w: unknown filter type", ErrInvalidInput)
	ErrUnsupportedSnapshot = fmt.Errorf("%w: unsupported snapshot version", ErrInvalidInput)

	// Upstream errors
	ErrUpstreamUnavailable = errors.New("upstream data unavailable")
)

// NewColumnOutOfRangeError reports a column index outside [0, numColumns)
func NewColumnOutOfRangeError(column, numColumns int) error {
	return fmt.Errorf("%w: column %d, matrix has %d columns", ErrColumnOutOfRange, column, numColumns)
}

// NewInvalidColumnSelectionError reports a bad pair of columns for a two-group test
func NewInvalidColumnSelectionError(a, b, numDataColumns int, reason string) error {
	return fmt.Errorf("%w: columns (%d, %d) with %d data columns: %s", ErrInvalidColumnSelection, a, b, numDataColumns, reason)
}

// NewUpstreamError wraps a failure of an external data collaborator
func NewUpstreamError(source string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, source, err)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
