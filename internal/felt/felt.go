// Package felt implements the Starknet field element used as entity identity,
// model selector and key component throughout the client.
//
// A Felt is stored as a 32-byte big-endian array so it is comparable, usable
// as a map key and safe to copy by value.
package felt

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strings"
)

// Felt is an element of the Stark field, always reduced below Prime.
type Felt [32]byte

// Zero is the additive identity.
var Zero Felt

// Prime is the Stark field modulus 2^251 + 17*2^192 + 1.
var Prime = func() *big.Int {
	p := new(big.Int).Lsh(big.NewInt(1), 251)
	p.Add(p, new(big.Int).Lsh(big.NewInt(17), 192))
	return p.Add(p, big.NewInt(1))
}()

// maxShortString is the number of ASCII bytes a short string may hold.
const maxShortString = 31

// Parse reads a decimal or 0x-prefixed hexadecimal literal.
func Parse(s string) (Felt, error) {
	if s == "" {
		return Zero, &ParseError{Input: s, Reason: "empty literal"}
	}

	digits, base := s, 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits, base = s[2:], 16
		if digits == "" {
			return Zero, &ParseError{Input: s, Reason: "missing hex digits"}
		}
	}

	// big.Int.SetString accepts signs and underscores, which are not valid here.
	for _, r := range digits {
		if !isDigit(r, base) {
			return Zero, &ParseError{Input: s, Reason: "invalid character " + quoteRune(r)}
		}
	}

	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return Zero, &ParseError{Input: s, Reason: "not a number"}
	}

	f, err := FromBig(n)
	if err != nil {
		return Zero, &ParseError{Input: s, Reason: "exceeds field modulus"}
	}
	return f, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for literals known to be valid.
func MustParse(s string) Felt {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}

// FromUint64 converts a machine integer.
func FromUint64(n uint64) Felt {
	var f Felt
	for i := 0; i < 8; i++ {
		f[31-i] = byte(n >> (8 * i))
	}
	return f
}

// FromBig converts a big integer in [0, Prime).
func FromBig(n *big.Int) (Felt, error) {
	if n.Sign() < 0 || n.Cmp(Prime) >= 0 {
		return Zero, &ParseError{Input: n.String(), Reason: "out of field range"}
	}
	var f Felt
	n.FillBytes(f[:])
	return f, nil
}

// FromShortString encodes a Cairo short string: at most 31 ASCII bytes
// interpreted as a big-endian integer.
func FromShortString(s string) (Felt, error) {
	if len(s) > maxShortString {
		return Zero, &ShortStringError{Input: s, Reason: "longer than 31 characters"}
	}
	var f Felt
	offset := len(f) - len(s)
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return Zero, &ShortStringError{Input: s, Reason: "non-ASCII character"}
		}
		f[offset+i] = s[i]
	}
	return f, nil
}

// Big returns the value as a new big.Int.
func (f Felt) Big() *big.Int {
	return new(big.Int).SetBytes(f[:])
}

// Uint64 returns the value if it fits in 64 bits.
func (f Felt) Uint64() (uint64, bool) {
	for _, b := range f[:24] {
		if b != 0 {
			return 0, false
		}
	}
	var n uint64
	for _, b := range f[24:] {
		n = n<<8 | uint64(b)
	}
	return n, true
}

// IsZero reports whether f is zero.
func (f Felt) IsZero() bool {
	return f == Zero
}

// Cmp compares numerically.
func (f Felt) Cmp(o Felt) int {
	return bytes.Compare(f[:], o[:])
}

// Equal reports whether f and o are the same element.
func (f Felt) Equal(o Felt) bool { return f == o }

// String renders 0x-prefixed lowercase hex without leading zeros.
func (f Felt) String() string {
	return "0x" + f.Big().Text(16)
}

// Hex64 renders the fixed-width form, 0x followed by 64 hex digits.
// Lexical order of Hex64 strings equals numeric order.
func (f Felt) Hex64() string {
	return "0x" + hex.EncodeToString(f[:])
}

// MarshalText implements encoding.TextMarshaler.
func (f Felt) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Felt) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// UnmarshalJSON accepts both string literals and bare JSON integers.
func (f *Felt) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return f.UnmarshalText([]byte(s))
	}
	return f.UnmarshalText(data)
}

func isDigit(r rune, base int) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case base == 16 && r >= 'a' && r <= 'f':
		return true
	case base == 16 && r >= 'A' && r <= 'F':
		return true
	default:
		return false
	}
}

func quoteRune(r rune) string {
	b, _ := json.Marshal(string(r))
	return string(b)
}
