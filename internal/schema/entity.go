package schema

import (
	"fmt"
	"slices"

	"github.com/MartianGreed/dojo.c/internal/felt"
)

// Model is one named record attached to an entity. Members keep
// declaration order.
type Model struct {
	Name    string
	Members []Member

	// ExplicitKeys, when non-nil, address the model instead of its key
	// members. Indexers that strip key members from the value set this.
	ExplicitKeys []felt.Felt
}

// Keys returns the addressing tuple a key clause must match: ExplicitKeys
// when set, otherwise the key members' values in declaration order.
func (m Model) Keys() ([]felt.Felt, error) {
	if m.ExplicitKeys != nil {
		return slices.Clone(m.ExplicitKeys), nil
	}
	var keys []felt.Felt
	for _, mem := range m.Members {
		if !mem.Key {
			continue
		}
		p, ok := mem.Ty.(Primitive)
		if !ok {
			return nil, fmt.Errorf("model %s: key member %q is not a primitive", m.Name, mem.Name)
		}
		f, err := p.AsFelt()
		if err != nil {
			return nil, fmt.Errorf("model %s: key member %q: %w", m.Name, mem.Name, err)
		}
		keys = append(keys, f)
	}
	return keys, nil
}

// AsStruct views the model as a struct value named after the model.
func (m Model) AsStruct() *Struct {
	return &Struct{Name: m.Name, Children: m.Members}
}

// ModelFromStruct is the inverse of AsStruct.
func ModelFromStruct(s *Struct) Model {
	return Model{Name: s.Name, Members: s.Children}
}

// Clone returns a deep copy of the model.
func (m Model) Clone() Model {
	return Model{Name: m.Name, Members: cloneMembers(m.Members), ExplicitKeys: slices.Clone(m.ExplicitKeys)}
}

// Entity is one world entity: its identity plus the models attached to it.
type Entity struct {
	HashedKeys felt.Felt
	Models     []Model
}

// Model returns the attached model with the given name.
func (e Entity) Model(name string) (Model, bool) {
	for _, m := range e.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}
