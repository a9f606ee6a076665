package query

import (
	"strings"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/ir"
)

// Clause selects entities.
//
// This is a sealed interface - only types in this package implement it.
// A nil Clause in a Query means an unfiltered, paginated scan.
//
// Clause types:
//   - KeysClause: entities of one model addressed by an exact key tuple
type Clause interface {
	clauseNode() // Marker method - seals interface to this package
}

// KeysClause addresses the entities of Model whose key members equal Keys.
//
// Key order is significant and must follow the model's declared key order.
// That order is not checked here.
type KeysClause struct {
	Model string
	Keys  []felt.Felt
}

func (KeysClause) clauseNode() {}

// ModelID resolves the model name to the numeric identifier used by synced
// storage, via the Cairo short-string transform.
func (c KeysClause) ModelID() (felt.Felt, error) {
	return felt.FromShortString(c.Model)
}

// Key returns a stable digest identifying this clause. Two clauses with the
// same model and key tuple always share a key.
func (c KeysClause) Key() string {
	return ir.MustDigest(ir.DomainClause, c.irValue())
}

func (c KeysClause) irValue() ir.IRValue {
	keys := make(ir.IRArray, len(c.Keys))
	for i, k := range c.Keys {
		keys[i] = ir.IRString(k.String())
	}
	return ir.NewIRObject(ir.O("model", ir.IRString(c.Model)), ir.O("keys", keys))
}

// Equal reports whether both clauses address the same model and key tuple.
func (c KeysClause) Equal(o KeysClause) bool {
	if c.Model != o.Model || len(c.Keys) != len(o.Keys) {
		return false
	}
	for i := range c.Keys {
		if c.Keys[i] != o.Keys[i] {
			return false
		}
	}
	return true
}

// String renders the clause as Model[key,key] for logs.
func (c KeysClause) String() string {
	parts := make([]string, len(c.Keys))
	for i, k := range c.Keys {
		parts[i] = k.String()
	}
	return c.Model + "[" + strings.Join(parts, ",") + "]"
}

// EntityModel returns the boundary form of the clause.
func (c KeysClause) EntityModel() EntityModel {
	em := EntityModel{Model: c.Model, Keys: make([]string, len(c.Keys))}
	for i, k := range c.Keys {
		em.Keys[i] = k.String()
	}
	return em
}

// Query is a paginated entity selection. Limit and Offset are passed to
// the fetch backend unchecked.
type Query struct {
	Clause Clause // nil = all entities
	Limit  uint32
	Offset uint32
}

// EntityModel is the boundary form of a KeysClause: key literals are
// decimal or 0x-hex strings.
type EntityModel struct {
	Model string   `json:"model" yaml:"model"`
	Keys  []string `json:"keys" yaml:"keys"`
}

// Clause parses the boundary form.
func (em EntityModel) Clause() (KeysClause, error) {
	return BuildClause(em.Model, em.Keys)
}

// BuildClause parses every key literal. The first malformed literal aborts
// with a *ParseError carrying the literal and its position.
func BuildClause(model string, keys []string) (KeysClause, error) {
	parsed, err := ParseIdentities(keys)
	if err != nil {
		return KeysClause{}, err
	}
	return KeysClause{Model: model, Keys: parsed}, nil
}

// Clauses parses a batch of boundary clauses. Any failure aborts the batch.
func Clauses(ems []EntityModel) ([]KeysClause, error) {
	out := make([]KeysClause, 0, len(ems))
	for _, em := range ems {
		c, err := em.Clause()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ParseIdentities parses identity literals in order.
func ParseIdentities(literals []string) ([]felt.Felt, error) {
	out := make([]felt.Felt, 0, len(literals))
	for i, lit := range literals {
		f, err := felt.Parse(lit)
		if err != nil {
			return nil, &ParseError{Input: lit, Position: i, Err: err}
		}
		out = append(out, f)
	}
	return out, nil
}
