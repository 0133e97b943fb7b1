package telemetry

import (
	"errors"
	"fmt"
)

// ErrNotFound reports an explicit absence: a time outside a scenario, an
// unknown drone or a missing video frame.
var ErrNotFound = errors.New("not found")

// LoadError is returned when a scenario, facility map or preset file is
// missing, unreadable or structurally invalid.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError rejects a single malformed telemetry record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid telemetry: " + e.Reason
	}
	return fmt.Sprintf("invalid telemetry: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsLoad reports whether err wraps a LoadError.
func IsLoad(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
