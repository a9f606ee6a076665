package schema

import (
	"errors"
	"fmt"
)

// ErrDuplicateMember is matched by every *DuplicateMemberError.
var ErrDuplicateMember = errors.New("duplicate member")

// DuplicateMemberError reports a second member with an existing name.
type DuplicateMemberError struct {
	Struct string
	Member string
}

func (e *DuplicateMemberError) Error() string {
	return fmt.Sprintf("struct %q: duplicate member %q", e.Struct, e.Member)
}

// Unwrap lets errors.Is match ErrDuplicateMember.
func (e *DuplicateMemberError) Unwrap() error { return ErrDuplicateMember }

// PrimitiveError reports a primitive literal or kind that cannot be represented.
type PrimitiveError struct {
	Type   string
	Input  string
	Reason string
}

func (e *PrimitiveError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("primitive %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("primitive %s %q: %s", e.Type, e.Input, e.Reason)
}

// WireError reports a malformed wire-form typed value.
type WireError struct {
	Path   string
	Reason string
}

func (e *WireError) Error() string {
	if e.Path == "" {
		return "invalid typed value: " + e.Reason
	}
	return fmt.Sprintf("invalid typed value at %s: %s", e.Path, e.Reason)
}
