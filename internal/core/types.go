package core

import (
	"fmt"
	"strings"
)

// PtrSize is the pointer width of the machine the core IR targets.
const PtrSize = 8

// TypeKind enumerates the core IR type constructors.
type TypeKind uint8

const (
	TyInt TypeKind = iota
	TyBool
	TyFloat
	TyPtr
	TyTuple
	TyArray
	TyUnion
	TyEnum
)

func (k TypeKind) String() string {
	switch k {
	case TyInt:
		return "int"
	case TyBool:
		return "bool"
	case TyFloat:
		return "float"
	case TyPtr:
		return "ptr"
	case TyTuple:
		return "tuple"
	case TyArray:
		return "array"
	case TyUnion:
		return "union"
	case TyEnum:
		return "enum"
	default:
		return fmt.Sprintf("TypeKind(%d)", k)
	}
}

// PtrKind distinguishes the pointer flavours the machine checks differently.
type PtrKind uint8

const (
	PtrRef PtrKind = iota
	PtrRefMut
	PtrBox
	PtrRaw
	PtrFn
)

var ptrKindNames = [...]string{
	PtrRef:    "ref",
	PtrRefMut: "refmut",
	PtrBox:    "box",
	PtrRaw:    "raw",
	PtrFn:     "fn",
}

func (k PtrKind) String() string {
	if int(k) < len(ptrKindNames) {
		return ptrKindNames[k]
	}
	return fmt.Sprintf("PtrKind(%d)", k)
}

// Safe reports whether values of this pointer kind must be non-null and
// aligned for their pointee.
func (k PtrKind) Safe() bool {
	return k == PtrRef || k == PtrRefMut || k == PtrBox
}

// PointeeInfo is everything the machine needs to know about what a safe
// pointer points to. It carries no type, so recursive types need no cycle.
type PointeeInfo struct {
	Size      int
	Align     int
	Inhabited bool
}

// PtrType describes a pointer.
type PtrType struct {
	Kind    PtrKind
	Pointee PointeeInfo // only meaningful when Kind.Safe()
}

// Field is a value stored at a fixed byte offset.
type Field struct {
	Offset int
	Type   Type
}

// TupleType is a sequence of fields with explicit offsets. Structs, closures
// and variant payloads all lower to tuples.
type TupleType struct {
	Fields []Field
	Size   int
	Align  int
}

// ArrayType is Count consecutive elements.
type ArrayType struct {
	Elem  Type
	Count int
}

// Chunk is a byte range of a union whose contents survive a typed copy.
type Chunk struct {
	Offset int
	Size   int
}

// UnionType is a set of overlapping fields plus the chunks that carry data.
type UnionType struct {
	Fields []Field
	Chunks []Chunk
	Size   int
	Align  int
}

// TagWrite is an integer stored into an enum value to mark its variant.
type TagWrite struct {
	Offset int
	Int    IntType
	Value  Int
}

// Variant is one alternative of an enum. Data is a tuple type spanning the
// whole enum; Tagger lists the writes that identify the variant.
type Variant struct {
	Discriminant Int
	Data         Type
	Tagger       []TagWrite
}

// DiscriminatorKind enumerates discriminator tree nodes.
type DiscriminatorKind uint8

const (
	DiscKnown DiscriminatorKind = iota
	DiscInvalid
	DiscBranch
)

// DiscriminatorCase selects Child when the read integer is in [Lo, Hi].
type DiscriminatorCase struct {
	Lo, Hi Int
	Child  Discriminator
}

// Discriminator is a decision tree that recovers the variant of an enum
// from its bytes. Branch nodes read an integer at Offset and pick the first
// case containing it, or Fallback.
type Discriminator struct {
	Kind     DiscriminatorKind
	Known    Int // DiscKnown: the discriminant
	Offset   int
	Int      IntType
	Cases    []DiscriminatorCase
	Fallback *Discriminator
}

// EnumType describes an enum with its tag encoding spelled out.
type EnumType struct {
	Variants         []Variant
	Discriminator    Discriminator
	DiscriminantType IntType
	Size             int
	Align            int
}

// Variant returns the variant with discriminant d.
func (e *EnumType) Variant(d Int) (*Variant, bool) {
	for i := range e.Variants {
		if e.Variants[i].Discriminant == d {
			return &e.Variants[i], true
		}
	}
	return nil, false
}

// Type is a core IR type. Exactly one payload field is set, selected by Kind.
type Type struct {
	Kind  TypeKind
	Int   IntType    // TyInt
	Float int        // TyFloat: size in bytes
	Ptr   *PtrType   // TyPtr
	Tuple *TupleType // TyTuple
	Array *ArrayType // TyArray
	Union *UnionType // TyUnion
	Enum  *EnumType  // TyEnum
}

// Constructors for the common cases.

func IntTy(it IntType) Type { return Type{Kind: TyInt, Int: it} }

func BoolTy() Type { return Type{Kind: TyBool} }

func FloatTy(size int) Type { return Type{Kind: TyFloat, Float: size} }

func PtrTy(kind PtrKind, pointee PointeeInfo) Type {
	if !kind.Safe() {
		pointee = PointeeInfo{}
	}
	return Type{Kind: TyPtr, Ptr: &PtrType{Kind: kind, Pointee: pointee}}
}

func TupleTy(fields []Field, size, align int) Type {
	return Type{Kind: TyTuple, Tuple: &TupleType{Fields: fields, Size: size, Align: align}}
}

// UnitTy is the empty tuple.
func UnitTy() Type { return TupleTy(nil, 0, 1) }

func ArrayTy(elem Type, count int) Type {
	return Type{Kind: TyArray, Array: &ArrayType{Elem: elem, Count: count}}
}

// Size returns the size in bytes of values of t.
func (t Type) Size() int {
	switch t.Kind {
	case TyInt:
		return t.Int.Size
	case TyBool:
		return 1
	case TyFloat:
		return t.Float
	case TyPtr:
		return PtrSize
	case TyTuple:
		return t.Tuple.Size
	case TyArray:
		return t.Array.Elem.Size() * t.Array.Count
	case TyUnion:
		return t.Union.Size
	case TyEnum:
		return t.Enum.Size
	}
	return 0
}

// Align returns the alignment in bytes of values of t.
func (t Type) Align() int {
	switch t.Kind {
	case TyInt:
		return t.Int.Size
	case TyBool:
		return 1
	case TyFloat:
		return t.Float
	case TyPtr:
		return PtrSize
	case TyTuple:
		return t.Tuple.Align
	case TyArray:
		return t.Array.Elem.Align()
	case TyUnion:
		return t.Union.Align
	case TyEnum:
		return t.Enum.Align
	}
	return 1
}

// Inhabited reports whether t has any valid value.
func (t Type) Inhabited() bool {
	switch t.Kind {
	case TyTuple:
		for _, f := range t.Tuple.Fields {
			if !f.Type.Inhabited() {
				return false
			}
		}
		return true
	case TyArray:
		return t.Array.Count == 0 || t.Array.Elem.Inhabited()
	case TyEnum:
		for _, v := range t.Enum.Variants {
			if v.Data.Inhabited() {
				return true
			}
		}
		return false
	}
	return true
}

// Equal reports structural equality.
func (t Type) Equal(u Type) bool {
	if t.Kind != u.Kind {
		return false
	}
	switch t.Kind {
	case TyInt:
		return t.Int == u.Int
	case TyBool:
		return true
	case TyFloat:
		return t.Float == u.Float
	case TyPtr:
		return *t.Ptr == *u.Ptr
	case TyTuple:
		return t.Tuple.Size == u.Tuple.Size && t.Tuple.Align == u.Tuple.Align && fieldsEqual(t.Tuple.Fields, u.Tuple.Fields)
	case TyArray:
		return t.Array.Count == u.Array.Count && t.Array.Elem.Equal(u.Array.Elem)
	case TyUnion:
		a, b := t.Union, u.Union
		if a.Size != b.Size || a.Align != b.Align || len(a.Chunks) != len(b.Chunks) {
			return false
		}
		for i := range a.Chunks {
			if a.Chunks[i] != b.Chunks[i] {
				return false
			}
		}
		return fieldsEqual(a.Fields, b.Fields)
	case TyEnum:
		return enumEqual(t.Enum, u.Enum)
	}
	return false
}

func fieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Offset != b[i].Offset || !a[i].Type.Equal(b[i].Type) {
			return false
		}
	}
	return true
}

func enumEqual(a, b *EnumType) bool {
	if a.Size != b.Size || a.Align != b.Align || a.DiscriminantType != b.DiscriminantType {
		return false
	}
	if len(a.Variants) != len(b.Variants) {
		return false
	}
	for i := range a.Variants {
		va, vb := a.Variants[i], b.Variants[i]
		if va.Discriminant != vb.Discriminant || !va.Data.Equal(vb.Data) || len(va.Tagger) != len(vb.Tagger) {
			return false
		}
		for j := range va.Tagger {
			if va.Tagger[j] != vb.Tagger[j] {
				return false
			}
		}
	}
	return a.Discriminator.Equal(b.Discriminator)
}

// Equal reports structural equality of discriminator trees.
func (d Discriminator) Equal(e Discriminator) bool {
	if d.Kind != e.Kind {
		return false
	}
	switch d.Kind {
	case DiscKnown:
		return d.Known == e.Known
	case DiscInvalid:
		return true
	}
	if d.Offset != e.Offset || d.Int != e.Int || len(d.Cases) != len(e.Cases) {
		return false
	}
	for i := range d.Cases {
		if d.Cases[i].Lo != e.Cases[i].Lo || d.Cases[i].Hi != e.Cases[i].Hi || !d.Cases[i].Child.Equal(e.Cases[i].Child) {
			return false
		}
	}
	if (d.Fallback == nil) != (e.Fallback == nil) {
		return false
	}
	return d.Fallback == nil || d.Fallback.Equal(*e.Fallback)
}

func (t Type) String() string {
	var sb strings.Builder
	writeType(&sb, t)
	return sb.String()
}
