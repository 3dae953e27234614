package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the source type kinds the host compiler can report.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnit
	KindBool
	KindChar
	KindInt
	KindUint
	KindFloat
	KindRef
	KindPtr
	KindBox
	KindTuple
	KindArray
	KindStruct
	KindUnion
	KindEnum
	KindFnDef
	KindNever
	KindStr
	KindSlice
	KindDyn
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnit:
		return "unit"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindRef:
		return "ref"
	case KindPtr:
		return "ptr"
	case KindBox:
		return "box"
	case KindTuple:
		return "tuple"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindFnDef:
		return "fndef"
	case KindNever:
		return "never"
	case KindStr:
		return "str"
	case KindSlice:
		return "slice"
	case KindDyn:
		return "dyn"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats.
type Width uint8

const (
	// WidthPtr is the pointer-sized width (isize/usize).
	WidthPtr Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// Type is a compact descriptor for any supported source type.
type Type struct {
	Kind    Kind   `msgpack:"k"`
	Elem    TypeID `msgpack:"e,omitempty"`
	Count   uint64 `msgpack:"n,omitempty"` // for arrays
	Width   Width  `msgpack:"w,omitempty"` // for numeric primitives
	Mutable bool   `msgpack:"m,omitempty"` // for references and raw pointers
	Payload uint32 `msgpack:"p,omitempty"` // tuple/adt slot, fn index for KindFnDef
}

// MakeInt describes a signed integer of the given width.
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeUint describes an unsigned integer type.
func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakeArray describes a fixed-length array [elem; count].
func MakeArray(elem TypeID, count uint64) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakeRef describes &T or &mut T depending on the mutable flag.
func MakeRef(elem TypeID, mutable bool) Type {
	return Type{Kind: KindRef, Elem: elem, Mutable: mutable}
}

// MakePtr describes *const T or *mut T.
func MakePtr(elem TypeID, mutable bool) Type {
	return Type{Kind: KindPtr, Elem: elem, Mutable: mutable}
}

// MakeBox describes Box<T>.
func MakeBox(elem TypeID) Type {
	return Type{Kind: KindBox, Elem: elem}
}

// MakeFnDef describes the zero-sized item type of crate function fn.
func MakeFnDef(fn uint32) Type {
	return Type{Kind: KindFnDef, Payload: fn}
}

// IsInteger reports whether the kind is a signed or unsigned integer.
func (t Type) IsInteger() bool {
	return t.Kind == KindInt || t.Kind == KindUint
}

// IsPointer reports whether values of the type are thin pointers.
func (t Type) IsPointer() bool {
	return t.Kind == KindRef || t.Kind == KindPtr || t.Kind == KindBox
}
