// Package codec encodes typed world data into the generic value tree that
// crosses the client boundary.
//
// Leaves are tagged objects:
//
//	{"type": "u32", "value": 5}
//	{"type": "felt252", "value": "0x1f"}
//	{"type": "struct", "value": {"x": {...}, "y": {...}}}
//	{"type": "enum", "value": 2}
//
// Entity maps are keyed by identity hex, then model name, then field name.
package codec

import (
	"fmt"

	"github.com/MartianGreed/dojo.c/internal/ir"
	"github.com/MartianGreed/dojo.c/internal/schema"
)

const (
	TagStruct = "struct"
	TagEnum   = "enum"
)

// EncodePrimitive maps a scalar to its generic value. Widths up to 64 bits
// become numbers; wider integers and field elements become 0x-hex strings.
// Unset primitives are null whatever their kind.
func EncodePrimitive(p schema.Primitive) ir.IRValue {
	if !p.IsSet() {
		return ir.IRNull{}
	}
	if b, ok := p.Bool(); ok {
		return ir.IRBool(b)
	}
	if n, ok := p.Uint64(); ok {
		return ir.IRUint(n)
	}
	return ir.IRString(p.Literal())
}

// EncodeTy encodes a typed value as {type, value}.
func EncodeTy(ty schema.Ty) (*ir.IRObject, error) {
	return encodeTy(ty, "")
}

func encodeTy(ty schema.Ty, path string) (*ir.IRObject, error) {
	switch t := ty.(type) {
	case schema.Primitive:
		return tagged(t.Kind.String(), EncodePrimitive(t)), nil

	case *schema.Struct:
		fields, err := encodeMembers(t.Children, path)
		if err != nil {
			return nil, err
		}
		return tagged(TagStruct, fields), nil

	case *schema.Enum:
		// Only the selected index crosses the boundary; option names and
		// payloads are known to the caller from the model schema.
		if t.Option == nil {
			return tagged(TagEnum, ir.IRNull{}), nil
		}
		return tagged(TagEnum, ir.IRUint(*t.Option)), nil

	case *schema.Tuple:
		return nil, &UnsupportedShapeError{Shape: "tuple", Path: path}

	default:
		return nil, &UnsupportedShapeError{Shape: fmt.Sprintf("%T", ty), Path: path}
	}
}

func encodeMembers(members []schema.Member, path string) (*ir.IRObject, error) {
	fields := ir.NewIRObject()
	for _, m := range members {
		child, err := encodeTy(m.Ty, joinPath(path, m.Name))
		if err != nil {
			return nil, err
		}
		fields.Set(m.Name, child)
	}
	return fields, nil
}

func tagged(tag string, value ir.IRValue) *ir.IRObject {
	return ir.NewIRObject(ir.O("type", ir.IRString(tag)), ir.O("value", value))
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// EncodeModel encodes a model's members as a field map. Unlike a struct
// value the result is not wrapped in {type, value}.
func EncodeModel(m schema.Model) (*ir.IRObject, error) {
	return encodeMembers(m.Members, m.Name)
}

// EncodeEntities builds {identity: {model: {field: {type, value}}}}.
// Entities keep input order; a repeated identity overwrites the earlier
// entry in place.
func EncodeEntities(entities []schema.Entity) (*ir.IRObject, error) {
	out := ir.NewIRObject()
	for _, e := range entities {
		models := ir.NewIRObject()
		for _, m := range e.Models {
			fields, err := EncodeModel(m)
			if err != nil {
				return nil, fmt.Errorf("entity %s: %w", e.HashedKeys, err)
			}
			models.Set(m.Name, fields)
		}
		out.Set(e.HashedKeys.String(), models)
	}
	return out, nil
}

// Marshal renders an encoded value as compact JSON in insertion order.
func Marshal(v ir.IRValue) ([]byte, error) {
	return ir.MarshalIRValue(v)
}
