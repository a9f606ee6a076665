package felt

import (
	"errors"
	"fmt"
)

// ParseError reports a literal that is not a valid field element.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid field element %q: %s", e.Input, e.Reason)
}

// ShortStringError reports a name that cannot be encoded as a Cairo short string.
type ShortStringError struct {
	Input  string
	Reason string
}

func (e *ShortStringError) Error() string {
	return fmt.Sprintf("invalid short string %q: %s", e.Input, e.Reason)
}

// IsParseError returns true if err wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
