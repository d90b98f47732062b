package fhir

import "sort"

// FieldKind is the semantic type of a schema field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindInteger
	KindBoolean
	KindDate
	KindObject
	KindArray
	// KindMixed accepts any JSON value and is never inspected.
	KindMixed
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// Fields maps member names to their specs.
type Fields map[string]*FieldSpec

// FieldSpec describes the permitted shape of one JSON value. Specs are
// immutable once built; the modifier methods return copies so shared
// datatype specs can be reused by every resource schema.
type FieldSpec struct {
	Kind     FieldKind
	Required bool
	Enum     []string
	Fields   Fields     // KindObject
	Elem     *FieldSpec // KindArray
}

func String() *FieldSpec  { return &FieldSpec{Kind: KindString} }
func Number() *FieldSpec  { return &FieldSpec{Kind: KindNumber} }
func Integer() *FieldSpec { return &FieldSpec{Kind: KindInteger} }
func Boolean() *FieldSpec { return &FieldSpec{Kind: KindBoolean} }
func Date() *FieldSpec    { return &FieldSpec{Kind: KindDate} }
func Mixed() *FieldSpec   { return &FieldSpec{Kind: KindMixed} }

func Object(fields Fields) *FieldSpec {
	return &FieldSpec{Kind: KindObject, Fields: fields}
}

func ArrayOf(elem *FieldSpec) *FieldSpec {
	return &FieldSpec{Kind: KindArray, Elem: elem}
}

// Require returns a copy of the spec marked mandatory.
func (f *FieldSpec) Require() *FieldSpec {
	c := *f
	c.Required = true
	return &c
}

// OneOf returns a copy of a string spec restricted to the given codes.
func (f *FieldSpec) OneOf(values ...string) *FieldSpec {
	c := *f
	c.Enum = append([]string(nil), values...)
	return &c
}

// With returns a copy of an object spec extended with extra members.
func (f *FieldSpec) With(extra Fields) *FieldSpec {
	merged := make(Fields, len(f.Fields)+len(extra))
	for k, v := range f.Fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	c := *f
	c.Fields = merged
	return &c
}

// RequiredFields lists the mandatory member names of an object spec, sorted.
func (f *FieldSpec) RequiredFields() []string {
	var names []string
	for name, spec := range f.Fields {
		if spec.Required {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (f *FieldSpec) allows(value string) bool {
	if len(f.Enum) == 0 {
		return true
	}
	for _, v := range f.Enum {
		if v == value {
			return true
		}
	}
	return false
}
