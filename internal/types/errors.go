package types

import (
	"errors"
	"fmt"
)

var (
	// ErrFatal marks failures that abort a directory open or path search
	ErrFatal = errors.New("fatal file system error")

	// ErrCorrupted marks consistency failures; partial results remain valid
	ErrCorrupted = errors.New("corrupted file system structure")

	// ErrInvalidID is returned for object identifiers outside the volume
	ErrInvalidID = errors.New("invalid object identifier")

	// ErrSequenceMismatch is returned when a sector trailer does not carry
	// the expected update sequence marker
	ErrSequenceMismatch = errors.New("incorrect update sequence value")

	// ErrStopWalk may be returned from a walk callback to end the walk early
	ErrStopWalk = errors.New("stop walk")
)

// CorruptionError describes a consistency failure found in one structure.
type CorruptionError struct {
	Addr   uint64
	Stage  string
	Reason string
	Err    error
}

func (e *CorruptionError) Error() string {
	msg := fmt.Sprintf("entry %d: %s: %s", e.Addr, e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is match both ErrCorrupted and the cause.
func (e *CorruptionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCorrupted, e.Err}
	}
	return []error{ErrCorrupted}
}

// NewCorruptionError creates a CorruptionError.
func NewCorruptionError(addr uint64, stage, reason string, err error) *CorruptionError {
	return &CorruptionError{Addr: addr, Stage: stage, Reason: reason, Err: err}
}

// FatalError wraps err so that errors.Is(err, ErrFatal) holds.
func FatalError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFatal, fmt.Sprintf(format, args...))
}

// WrapFatal wraps a cause as a fatal error with context.
func WrapFatal(err error, context string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrFatal) {
		return fmt.Errorf("%s: %w", context, err)
	}
	return fmt.Errorf("%s: %w: %w", context, ErrFatal, err)
}

// IsCorruption reports whether err is a corruption finding rather than a fatal error.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorrupted) && !errors.Is(err, ErrFatal)
}
