package codec

import (
	"errors"
	"fmt"
)

// UnsupportedShapeError reports a typed value the encoder has no mapping for.
// Tuples are the only shape that reaches it from well-formed schemas.
type UnsupportedShapeError struct {
	Shape string
	Path  string // dotted member path, empty at the root
}

func (e *UnsupportedShapeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("cannot encode %s value", e.Shape)
	}
	return fmt.Sprintf("cannot encode %s value at %s", e.Shape, e.Path)
}

// IsUnsupportedShape returns true if err wraps an *UnsupportedShapeError.
func IsUnsupportedShape(err error) bool {
	var ue *UnsupportedShapeError
	return errors.As(err, &ue)
}
