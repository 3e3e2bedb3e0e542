package internal

import "strings"

// WordSize is the size of Integer and of any pointer, in words.
const WordSize = 1

type TypeKind int

const (
	IntegerTypeKind TypeKind = iota
	PointerTypeKind
	StructTypeKind
)

// Type is a closed variant over Integer, Pointer(Elem) and Struct(def).
type Type struct {
	Kind   TypeKind
	Elem   *Type      // pointee, for PointerTypeKind
	Struct *StructDef // definition, for StructTypeKind
}

var IntegerType = &Type{Kind: IntegerTypeKind}

func PointerTo(elem *Type) *Type {
	return &Type{Kind: PointerTypeKind, Elem: elem}
}

func StructType(def *StructDef) *Type {
	return &Type{Kind: StructTypeKind, Struct: def}
}

func (t *Type) IsInteger() bool { return t != nil && t.Kind == IntegerTypeKind }
func (t *Type) IsPointer() bool { return t != nil && t.Kind == PointerTypeKind }
func (t *Type) IsStruct() bool  { return t != nil && t.Kind == StructTypeKind }

// Size is the number of words a value of t occupies.
func (t *Type) Size() int {
	switch t.Kind {
	case IntegerTypeKind, PointerTypeKind:
		return WordSize
	case StructTypeKind:
		return t.Struct.Size
	}
	panic("unknown type kind")
}

// Equal reports type identity. Pointers are identical when their pointees are,
// structs when they name the same definition.
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case PointerTypeKind:
		return t.Elem.Equal(other.Elem)
	case StructTypeKind:
		return t.Struct == other.Struct
	}
	return true
}

func (t *Type) String() string {
	if t == nil {
		return "<none>"
	}
	switch t.Kind {
	case IntegerTypeKind:
		return "Integer"
	case PointerTypeKind:
		return t.Elem.String() + "*"
	case StructTypeKind:
		return t.Struct.Name
	}
	return ""
}

type FieldDef struct {
	Name   string
	TP     *Type
	Offset int
}

type layoutState int

const (
	layoutPending layoutState = iota
	layoutInProgress
	layoutDone
)

type StructDef struct {
	Name   string
	Fields []*FieldDef
	Size   int
	Pos    Position

	state layoutState
}

func (def *StructDef) Field(name string) *FieldDef {
	for _, field := range def.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// computeLayout places fields sequentially: each offset is the sum of the sizes of
// the fields before it. Calling it again on a laid out struct is a no-op.
func (def *StructDef) computeLayout() {
	offset := 0
	for _, field := range def.Fields {
		field.Offset = offset
		offset += field.TP.Size()
	}
	def.Size = offset
	def.state = layoutDone
}

func (def *StructDef) String() string {
	var builder strings.Builder
	builder.WriteString(def.Name)
	builder.WriteString("{")
	for i, field := range def.Fields {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(field.Name)
		builder.WriteString(" ")
		builder.WriteString(field.TP.String())
	}
	builder.WriteString("}")
	return builder.String()
}
