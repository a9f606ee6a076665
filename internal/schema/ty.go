package schema

import "slices"

// Ty is a schema-described value: a primitive, a struct, an enum or a tuple.
//
// This is a sealed interface - only types in this package implement it, so
// encoders can switch exhaustively over:
//
//	switch t := ty.(type) {
//	case Primitive:
//	case *Struct:
//	case *Enum:
//	case *Tuple:
//	}
type Ty interface {
	isTy() // Marker method - seals interface to this package
}

// Member is one named field of a struct or model.
// Key members form the model's addressing tuple, in declaration order.
type Member struct {
	Name string
	Ty   Ty
	Key  bool
}

// Struct is an ordered list of uniquely named members.
type Struct struct {
	Name     string
	Children []Member
}

func (*Struct) isTy() {}

// NewStruct builds a struct, rejecting duplicate member names.
func NewStruct(name string, members ...Member) (*Struct, error) {
	s := &Struct{Name: name}
	for _, m := range members {
		if err := s.Add(m); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a member. Names must be unique within one struct level.
func (s *Struct) Add(m Member) error {
	if _, ok := s.Member(m.Name); ok {
		return &DuplicateMemberError{Struct: s.Name, Member: m.Name}
	}
	s.Children = append(s.Children, m)
	return nil
}

// Member looks up a direct child by name.
func (s *Struct) Member(name string) (Member, bool) {
	for _, m := range s.Children {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// EnumOption is one variant of an enum.
type EnumOption struct {
	Name string
	Ty   Ty
}

// Enum carries the index of its selected option, or nil when none is selected.
type Enum struct {
	Name    string
	Option  *uint8
	Options []EnumOption
}

func (*Enum) isTy() {}

// Selected returns the selected option, if any.
func (e *Enum) Selected() (EnumOption, bool) {
	if e.Option == nil || int(*e.Option) >= len(e.Options) {
		return EnumOption{}, false
	}
	return e.Options[*e.Option], true
}

// OptionIndex is a convenience for building Enum.Option literals.
func OptionIndex(i uint8) *uint8 { return &i }

// Tuple is an ordered list of unnamed elements.
type Tuple struct {
	Elems []Ty
}

func (*Tuple) isTy() {}

// Clone returns a deep copy of ty so a snapshot can be handed out while the
// original keeps changing.
func Clone(ty Ty) Ty {
	switch t := ty.(type) {
	case nil:
		return nil
	case Primitive:
		return t
	case *Struct:
		if t == nil {
			return t
		}
		return &Struct{Name: t.Name, Children: cloneMembers(t.Children)}
	case *Enum:
		if t == nil {
			return t
		}
		e := &Enum{Name: t.Name}
		if t.Option != nil {
			e.Option = OptionIndex(*t.Option)
		}
		for _, o := range t.Options {
			e.Options = append(e.Options, EnumOption{Name: o.Name, Ty: Clone(o.Ty)})
		}
		return e
	case *Tuple:
		if t == nil {
			return t
		}
		elems := make([]Ty, len(t.Elems))
		for i, el := range t.Elems {
			elems[i] = Clone(el)
		}
		return &Tuple{Elems: elems}
	default:
		return ty
	}
}

func cloneMembers(ms []Member) []Member {
	if ms == nil {
		return nil
	}
	out := slices.Clone(ms)
	for i := range out {
		out[i].Ty = Clone(out[i].Ty)
	}
	return out
}
