package query

import (
	"errors"
	"fmt"
)

// ParseError reports a malformed identity literal in a key or id list.
type ParseError struct {
	Input    string
	Position int
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("key %d %q: %v", e.Position, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError returns true if err wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
