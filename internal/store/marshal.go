package store

import (
	"fmt"
	"slices"

	"github.com/MartianGreed/dojo.c/internal/querysql"
	"github.com/MartianGreed/dojo.c/internal/schema"
)

// modelRow is one entity_models row ready to write.
type modelRow struct {
	model string
	keys  string
	ty    string
}

// marshalModel derives the key column from the model's keys (explicit or
// key members) and serializes the model as a wire-form struct named after the model.
func marshalModel(m schema.Model) (modelRow, error) {
	keys, err := m.Keys()
	if err != nil {
		return modelRow{}, fmt.Errorf("marshal model: %w", err)
	}
	data, err := schema.MarshalTy(m.AsStruct())
	if err != nil {
		return modelRow{}, fmt.Errorf("marshal model %s: %w", m.Name, err)
	}
	return modelRow{model: m.Name, keys: querysql.EncodeKeys(keys), ty: string(data)}, nil
}

// unmarshalModel parses stored keys and ty columns back into a model.
// Keys that the members do not imply are restored as ExplicitKeys.
func unmarshalModel(keyCol, data string) (schema.Model, error) {
	ty, err := schema.UnmarshalTy([]byte(data))
	if err != nil {
		return schema.Model{}, fmt.Errorf("unmarshal model: %w", err)
	}
	s, ok := ty.(*schema.Struct)
	if !ok {
		return schema.Model{}, fmt.Errorf("unmarshal model: expected struct, got %T", ty)
	}
	m := schema.ModelFromStruct(s)

	stored, err := querysql.DecodeKeys(keyCol)
	if err != nil {
		return schema.Model{}, fmt.Errorf("unmarshal model %s: %w", m.Name, err)
	}
	derived, err := m.Keys()
	if err != nil || !slices.Equal(stored, derived) {
		m.ExplicitKeys = stored
	}
	return m, nil
}
