package location

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrPermissionDenied is reported when the platform refuses location
	// access. It is fatal for the current sampling session.
	ErrPermissionDenied = errors.New("location: permission denied")

	// ErrUnknownMode is returned by ParseMode.
	ErrUnknownMode = errors.New("location: unknown strategy mode")

	// ErrNoSource is returned when a strategy has no provider to read from.
	ErrNoSource = errors.New("location: no provider configured")
)

// SourceError is a strategy-internal failure.
type SourceError struct {
	Mode Mode
	Op   string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("location: %s %s: %v", e.Mode, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsPermissionDenied reports whether err carries a permission failure.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// sourceError wraps a provider error, normalizing permission failures.
func sourceError(mode Mode, op string, err error) *SourceError {
	if errors.Is(err, fs.ErrPermission) && !errors.Is(err, ErrPermissionDenied) {
		err = fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return &SourceError{Mode: mode, Op: op, Err: err}
}
