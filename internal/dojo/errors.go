package dojo

import (
	"errors"
	"fmt"
)

// TransportError wraps a failure from the fetch or subscription backend.
// Op names the boundary operation, e.g. "get entities".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StreamTerminationError is recorded on a Registration whose source stream
// ended without the registration being cancelled.
type StreamTerminationError struct {
	Kind string
	ID   string
}

func (e *StreamTerminationError) Error() string {
	return fmt.Sprintf("%s listener %s: update stream ended", e.Kind, e.ID)
}

// IsTransportError reports whether err is a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsStreamTermination reports whether err is a *StreamTerminationError.
func IsStreamTermination(err error) bool {
	var se *StreamTerminationError
	return errors.As(err, &se)
}
