package schema

import (
	"encoding/json"
	"fmt"

	"github.com/MartianGreed/dojo.c/internal/felt"
)

// Wire is the lossless serialized form of a Ty, used by the local indexer
// tables, the subscription feed and YAML fixtures. Exactly one field is set:
//
//	{"primitive":{"type":"u32","value":"0x5"}}
//	{"struct":{"name":"Vec2","children":[{"name":"x","ty":{...},"key":false}]}}
//	{"enum":{"name":"Direction","option":2,"options":[{"name":"Up","ty":{...}}]}}
//	{"tuple":[{...},{...}]}
//
// Primitive values are literals as read by ParsePrimitive; a missing value
// means unset.
type Wire struct {
	Primitive *WirePrimitive `json:"primitive,omitempty" yaml:"primitive,omitempty"`
	Struct    *WireStruct    `json:"struct,omitempty" yaml:"struct,omitempty"`
	Enum      *WireEnum      `json:"enum,omitempty" yaml:"enum,omitempty"`
	Tuple     *[]Wire        `json:"tuple,omitempty" yaml:"tuple,omitempty"`
}

type WirePrimitive struct {
	Type  string  `json:"type" yaml:"type"`
	Value *string `json:"value,omitempty" yaml:"value,omitempty"`
}

type WireStruct struct {
	Name     string       `json:"name" yaml:"name"`
	Children []WireMember `json:"children" yaml:"children"`
}

type WireMember struct {
	Name string `json:"name" yaml:"name"`
	Ty   Wire   `json:"ty" yaml:"ty"`
	Key  bool   `json:"key,omitempty" yaml:"key,omitempty"`
}

type WireEnum struct {
	Name    string           `json:"name" yaml:"name"`
	Option  *uint8           `json:"option,omitempty" yaml:"option,omitempty"`
	Options []WireEnumOption `json:"options" yaml:"options"`
}

type WireEnumOption struct {
	Name string `json:"name" yaml:"name"`
	Ty   Wire   `json:"ty" yaml:"ty"`
}

// WireModel is the serialized form of a Model.
type WireModel struct {
	Name    string       `json:"name" yaml:"name"`
	Keys    []string     `json:"keys,omitempty" yaml:"keys,omitempty"`
	Members []WireMember `json:"members" yaml:"members"`
}

// WireEntity is the serialized form of an Entity.
type WireEntity struct {
	HashedKeys string      `json:"hashed_keys" yaml:"hashed_keys"`
	Models     []WireModel `json:"models" yaml:"models"`
}

// ToWire converts a typed value to its serialized form.
func ToWire(ty Ty) (Wire, error) {
	switch t := ty.(type) {
	case Primitive:
		wp := &WirePrimitive{Type: t.Kind.String()}
		if t.IsSet() {
			lit := t.Literal()
			wp.Value = &lit
		}
		return Wire{Primitive: wp}, nil
	case *Struct:
		children, err := membersToWire(t.Children)
		if err != nil {
			return Wire{}, fmt.Errorf("struct %s: %w", t.Name, err)
		}
		return Wire{Struct: &WireStruct{Name: t.Name, Children: children}}, nil
	case *Enum:
		we := &WireEnum{Name: t.Name, Options: []WireEnumOption{}}
		if t.Option != nil {
			we.Option = OptionIndex(*t.Option)
		}
		for _, o := range t.Options {
			w, err := ToWire(o.Ty)
			if err != nil {
				return Wire{}, fmt.Errorf("enum %s option %s: %w", t.Name, o.Name, err)
			}
			we.Options = append(we.Options, WireEnumOption{Name: o.Name, Ty: w})
		}
		return Wire{Enum: we}, nil
	case *Tuple:
		elems := make([]Wire, 0, len(t.Elems))
		for i, el := range t.Elems {
			w, err := ToWire(el)
			if err != nil {
				return Wire{}, fmt.Errorf("tuple element %d: %w", i, err)
			}
			elems = append(elems, w)
		}
		return Wire{Tuple: &elems}, nil
	default:
		return Wire{}, &WireError{Reason: fmt.Sprintf("unsupported type %T", ty)}
	}
}

func membersToWire(members []Member) ([]WireMember, error) {
	out := make([]WireMember, 0, len(members))
	for _, m := range members {
		w, err := ToWire(m.Ty)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.Name, err)
		}
		out = append(out, WireMember{Name: m.Name, Ty: w, Key: m.Key})
	}
	return out, nil
}

// Ty converts the serialized form back to a typed value.
func (w Wire) Ty() (Ty, error) {
	return w.decode("$")
}

func (w Wire) decode(path string) (Ty, error) {
	set := 0
	for _, present := range []bool{w.Primitive != nil, w.Struct != nil, w.Enum != nil, w.Tuple != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, &WireError{Path: path, Reason: fmt.Sprintf("expected exactly one of primitive, struct, enum, tuple; got %d", set)}
	}

	switch {
	case w.Primitive != nil:
		kind, err := ParsePrimitiveKind(w.Primitive.Type)
		if err != nil {
			return nil, &WireError{Path: path, Reason: err.Error()}
		}
		if w.Primitive.Value == nil {
			return Unset(kind), nil
		}
		p, err := ParsePrimitive(kind, *w.Primitive.Value)
		if err != nil {
			return nil, &WireError{Path: path, Reason: err.Error()}
		}
		return p, nil

	case w.Struct != nil:
		s := &Struct{Name: w.Struct.Name}
		members, err := membersFromWire(w.Struct.Children, path)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if err := s.Add(m); err != nil {
				return nil, &WireError{Path: path, Reason: err.Error()}
			}
		}
		return s, nil

	case w.Enum != nil:
		e := &Enum{Name: w.Enum.Name}
		for i, o := range w.Enum.Options {
			ty, err := o.Ty.decode(fmt.Sprintf("%s.options[%d]", path, i))
			if err != nil {
				return nil, err
			}
			e.Options = append(e.Options, EnumOption{Name: o.Name, Ty: ty})
		}
		if w.Enum.Option != nil {
			if int(*w.Enum.Option) >= len(e.Options) {
				return nil, &WireError{Path: path, Reason: fmt.Sprintf("option %d out of range (%d options)", *w.Enum.Option, len(e.Options))}
			}
			e.Option = OptionIndex(*w.Enum.Option)
		}
		return e, nil

	default:
		t := &Tuple{}
		for i, el := range *w.Tuple {
			ty, err := el.decode(fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			t.Elems = append(t.Elems, ty)
		}
		return t, nil
	}
}

func membersFromWire(wms []WireMember, path string) ([]Member, error) {
	out := make([]Member, 0, len(wms))
	for _, wm := range wms {
		ty, err := wm.Ty.decode(path + "." + wm.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, Member{Name: wm.Name, Ty: ty, Key: wm.Key})
	}
	return out, nil
}

// MarshalTy encodes a typed value to its JSON wire form.
func MarshalTy(ty Ty) ([]byte, error) {
	w, err := ToWire(ty)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalTy decodes a typed value from its JSON wire form.
func UnmarshalTy(data []byte) (Ty, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &WireError{Reason: err.Error()}
	}
	return w.Ty()
}

// ModelToWire converts a model to its serialized form.
func ModelToWire(m Model) (WireModel, error) {
	members, err := membersToWire(m.Members)
	if err != nil {
		return WireModel{}, fmt.Errorf("model %s: %w", m.Name, err)
	}
	wm := WireModel{Name: m.Name, Members: members}
	if m.ExplicitKeys != nil {
		wm.Keys = make([]string, len(m.ExplicitKeys))
		for i, k := range m.ExplicitKeys {
			wm.Keys[i] = k.String()
		}
	}
	return wm, nil
}

// Model converts the serialized form back to a Model.
func (w WireModel) Model() (Model, error) {
	members, err := membersFromWire(w.Members, w.Name)
	if err != nil {
		return Model{}, err
	}
	s := &Struct{Name: w.Name}
	for _, m := range members {
		if err := s.Add(m); err != nil {
			return Model{}, &WireError{Path: w.Name, Reason: err.Error()}
		}
	}
	m := ModelFromStruct(s)
	if w.Keys != nil {
		m.ExplicitKeys = make([]felt.Felt, len(w.Keys))
		for i, lit := range w.Keys {
			k, err := felt.Parse(lit)
			if err != nil {
				return Model{}, &WireError{Path: fmt.Sprintf("%s.keys[%d]", w.Name, i), Reason: err.Error()}
			}
			m.ExplicitKeys[i] = k
		}
	}
	return m, nil
}

// EntityToWire converts an entity to its serialized form.
func EntityToWire(e Entity) (WireEntity, error) {
	we := WireEntity{HashedKeys: e.HashedKeys.String(), Models: make([]WireModel, 0, len(e.Models))}
	for _, m := range e.Models {
		wm, err := ModelToWire(m)
		if err != nil {
			return WireEntity{}, err
		}
		we.Models = append(we.Models, wm)
	}
	return we, nil
}

// Entity converts the serialized form back to an Entity.
func (w WireEntity) Entity() (Entity, error) {
	id, err := felt.Parse(w.HashedKeys)
	if err != nil {
		return Entity{}, fmt.Errorf("hashed_keys: %w", err)
	}
	e := Entity{HashedKeys: id}
	for _, wm := range w.Models {
		m, err := wm.Model()
		if err != nil {
			return Entity{}, err
		}
		e.Models = append(e.Models, m)
	}
	return e, nil
}
