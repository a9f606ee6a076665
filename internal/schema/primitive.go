package schema

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/MartianGreed/dojo.c/internal/felt"
)

// PrimitiveKind is the closed set of scalar types a model member may have.
type PrimitiveKind uint8

const (
	KindBool PrimitiveKind = iota + 1
	KindU8
	KindU16
	KindU32
	KindU64
	KindUSize
	KindU128
	KindU256
	KindFelt252
	KindClassHash
	KindContractAddress
)

var kindNames = map[PrimitiveKind]string{
	KindBool:            "bool",
	KindU8:              "u8",
	KindU16:             "u16",
	KindU32:             "u32",
	KindU64:             "u64",
	KindUSize:           "usize",
	KindU128:            "u128",
	KindU256:            "u256",
	KindFelt252:         "felt252",
	KindClassHash:       "classhash",
	KindContractAddress: "contractaddress",
}

// String returns the canonical type name ("u64", "felt252", ...).
func (k PrimitiveKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParsePrimitiveKind resolves a canonical type name.
func ParsePrimitiveKind(name string) (PrimitiveKind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, &PrimitiveError{Type: name, Reason: "unknown primitive type"}
}

// Bits returns the declared width for unsigned integer kinds, 0 otherwise.
func (k PrimitiveKind) Bits() int {
	switch k {
	case KindU8:
		return 8
	case KindU16:
		return 16
	case KindU32, KindUSize:
		return 32
	case KindU64:
		return 64
	case KindU128:
		return 128
	case KindU256:
		return 256
	default:
		return 0
	}
}

// IsFelt reports whether the kind stores a field element.
func (k PrimitiveKind) IsFelt() bool {
	return k == KindFelt252 || k == KindClassHash || k == KindContractAddress
}

// Primitive is a scalar value tagged with its kind. The zero value of the
// payload is distinct from "unset": an unset primitive has a kind but no value.
type Primitive struct {
	Kind PrimitiveKind

	set  bool
	b    bool
	n    uint64   // u8, u16, u32, u64, usize
	wide *big.Int // u128, u256; never mutated after construction
	f    felt.Felt
}

func (Primitive) isTy() {}

// Unset returns a primitive of kind k that holds no value.
func Unset(k PrimitiveKind) Primitive { return Primitive{Kind: k} }

func NewBool(v bool) Primitive { return Primitive{Kind: KindBool, set: true, b: v} }
func NewU8(v uint8) Primitive { return Primitive{Kind: KindU8, set: true, n: uint64(v)} }
func NewU16(v uint16) Primitive { return Primitive{Kind: KindU16, set: true, n: uint64(v)} }
func NewU32(v uint32) Primitive { return Primitive{Kind: KindU32, set: true, n: uint64(v)} }
func NewU64(v uint64) Primitive { return Primitive{Kind: KindU64, set: true, n: v} }
func NewUSize(v uint32) Primitive { return Primitive{Kind: KindUSize, set: true, n: uint64(v)} }
func NewFelt252(v felt.Felt) Primitive {
	return Primitive{Kind: KindFelt252, set: true, f: v}
}
func NewClassHash(v felt.Felt) Primitive {
	return Primitive{Kind: KindClassHash, set: true, f: v}
}
func NewContractAddress(v felt.Felt) Primitive {
	return Primitive{Kind: KindContractAddress, set: true, f: v}
}

// NewU128 returns a u128 primitive, failing if v does not fit.
func NewU128(v *big.Int) (Primitive, error) { return newWide(KindU128, v) }

// NewU256 returns a u256 primitive, failing if v does not fit.
func NewU256(v *big.Int) (Primitive, error) { return newWide(KindU256, v) }

func newWide(k PrimitiveKind, v *big.Int) (Primitive, error) {
	if v.Sign() < 0 || v.BitLen() > k.Bits() {
		return Primitive{}, &PrimitiveError{Type: k.String(), Input: v.String(), Reason: "out of range"}
	}
	return Primitive{Kind: k, set: true, wide: new(big.Int).Set(v)}, nil
}

// ParsePrimitive builds a primitive of kind k from a literal. Booleans accept
// "true"/"false"; every numeric kind accepts decimal or 0x-hex.
func ParsePrimitive(k PrimitiveKind, literal string) (Primitive, error) {
	fail := func(reason string) (Primitive, error) {
		return Primitive{}, &PrimitiveError{Type: k.String(), Input: literal, Reason: reason}
	}

	if k == KindBool {
		v, err := strconv.ParseBool(literal)
		if err != nil {
			return fail("not a boolean")
		}
		return NewBool(v), nil
	}

	if k.IsFelt() {
		f, err := felt.Parse(literal)
		if err != nil {
			return fail(err.Error())
		}
		return Primitive{Kind: k, set: true, f: f}, nil
	}

	if k.Bits() == 0 {
		return fail("unknown primitive type")
	}

	n, ok := parseUnsigned(literal)
	if !ok {
		return fail("not an unsigned integer")
	}
	if n.BitLen() > k.Bits() {
		return fail("out of range")
	}
	if k.Bits() > 64 {
		return newWide(k, n)
	}
	return Primitive{Kind: k, set: true, n: n.Uint64()}, nil
}

func parseUnsigned(s string) (*big.Int, bool) {
	digits, base := s, 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits, base = s[2:], 16
	}
	if digits == "" || strings.ContainsAny(digits, "+-_") {
		return nil, false
	}
	return new(big.Int).SetString(digits, base)
}

// IsSet reports whether the primitive holds a value.
func (p Primitive) IsSet() bool { return p.set }

// Bool returns the boolean payload.
func (p Primitive) Bool() (bool, bool) {
	return p.b, p.set && p.Kind == KindBool
}

// Uint64 returns the payload of a u8/u16/u32/u64/usize primitive.
func (p Primitive) Uint64() (uint64, bool) {
	return p.n, p.set && p.Kind.Bits() > 0 && p.Kind.Bits() <= 64
}

// Felt returns the payload of a felt252/classhash/contractaddress primitive.
func (p Primitive) Felt() (felt.Felt, bool) {
	return p.f, p.set && p.Kind.IsFelt()
}

// Big returns any numeric payload as a new big.Int, or nil for unset and
// boolean primitives.
func (p Primitive) Big() *big.Int {
	switch {
	case !p.set || p.Kind == KindBool:
		return nil
	case p.Kind.IsFelt():
		return p.f.Big()
	case p.wide != nil:
		return new(big.Int).Set(p.wide)
	default:
		return new(big.Int).SetUint64(p.n)
	}
}

// Literal renders the payload the way ParsePrimitive reads it: "true"/"false"
// for booleans and 0x-hex for numbers. Unset primitives render as "".
func (p Primitive) Literal() string {
	switch {
	case !p.set:
		return ""
	case p.Kind == KindBool:
		return strconv.FormatBool(p.b)
	default:
		return "0x" + p.Big().Text(16)
	}
}

// AsFelt converts a numeric primitive to a field element, as done for key
// members. Values that do not fit the field are rejected.
func (p Primitive) AsFelt() (felt.Felt, error) {
	if f, ok := p.Felt(); ok {
		return f, nil
	}
	if p.Kind == KindBool && p.set {
		if p.b {
			return felt.FromUint64(1), nil
		}
		return felt.Zero, nil
	}
	n := p.Big()
	if n == nil {
		return felt.Zero, &PrimitiveError{Type: p.Kind.String(), Reason: "unset value has no field representation"}
	}
	f, err := felt.FromBig(n)
	if err != nil {
		return felt.Zero, &PrimitiveError{Type: p.Kind.String(), Input: p.Literal(), Reason: "does not fit a field element"}
	}
	return f, nil
}
