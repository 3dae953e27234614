package mir

import "minimize/internal/types"

// StmtKind enumerates statement kinds in MIR.
type StmtKind uint8

const (
	// StmtNop does nothing.
	StmtNop StmtKind = iota
	// StmtAssign stores an rvalue into a place.
	StmtAssign
	// StmtStorageLive starts the lifetime of a local.
	StmtStorageLive
	// StmtStorageDead ends the lifetime of a local.
	StmtStorageDead
	// StmtSetDiscriminant marks an enum place as holding a variant.
	StmtSetDiscriminant
)

// Statement represents a MIR statement.
type Statement struct {
	Kind StmtKind

	Assign          AssignStmt          `msgpack:",omitempty"`
	Local           LocalID             `msgpack:",omitempty"`
	SetDiscriminant SetDiscriminantStmt `msgpack:",omitempty"`
}

type AssignStmt struct {
	Dst Place
	Src RValue
}

type SetDiscriminantStmt struct {
	Place   Place
	Variant int
}

// OperandKind distinguishes operand forms.
type OperandKind uint8

const (
	// OperandCopy reads a place and leaves it intact.
	OperandCopy OperandKind = iota
	// OperandMove reads a place and leaves it uninitialized.
	OperandMove
	// OperandConst is a constant.
	OperandConst
)

type Operand struct {
	Kind  OperandKind
	Place Place `msgpack:",omitempty"`
	Const Const `msgpack:",omitempty"`
}

// ConstKind enumerates constant forms.
type ConstKind uint8

const (
	// ConstScalar holds the raw bits of an integer, bool, char or float.
	ConstScalar ConstKind = iota
	// ConstZeroSized is the only value of a zero-sized type.
	ConstZeroSized
	// ConstFn names a crate function; its type is the function's item type.
	ConstFn
	// ConstAggregate lists field constants of a tuple, struct, array, union
	// or enum variant.
	ConstAggregate
	// ConstUnevaluated refers to a crate constant item.
	ConstUnevaluated
)

// Const is a compile-time value. For aggregates Variant is the enum variant,
// or the active field of a union.
type Const struct {
	Kind ConstKind
	Type types.TypeID

	Bits    uint64  `msgpack:",omitempty"`
	Fn      FuncID  `msgpack:",omitempty"`
	Variant int     `msgpack:",omitempty"`
	Fields  []Const `msgpack:",omitempty"`
	Item    ConstID `msgpack:",omitempty"`
}

// RValueKind enumerates rvalue forms.
type RValueKind uint8

const (
	// RValueUse is an operand as is.
	RValueUse RValueKind = iota
	// RValueBinaryOp applies a binary operator.
	RValueBinaryOp
	// RValueUnaryOp applies a unary operator.
	RValueUnaryOp
	// RValueCast converts an operand to another type.
	RValueCast
	// RValueAggregate builds a tuple, array or ADT value.
	RValueAggregate
	// RValueDiscriminant reads the discriminant of an enum place.
	RValueDiscriminant
	// RValueRef borrows a place.
	RValueRef
	// RValueAddressOf takes a raw pointer to a place.
	RValueAddressOf
)

type RValue struct {
	Kind RValueKind

	Use       Operand     `msgpack:",omitempty"`
	Binary    BinaryOp    `msgpack:",omitempty"`
	Unary     UnaryOp     `msgpack:",omitempty"`
	Cast      CastOp      `msgpack:",omitempty"`
	Aggregate AggregateRV `msgpack:",omitempty"`
	Place     Place       `msgpack:",omitempty"` // Discriminant, Ref, AddressOf
	Mutable   bool        `msgpack:",omitempty"` // Ref, AddressOf
}

// BinOp enumerates binary operators. The plain arithmetic forms wrap; the
// unchecked ones make overflow undefined.
type BinOp uint8

const (
	BinAdd BinOp = iota
	BinAddUnchecked
	BinSub
	BinSubUnchecked
	BinMul
	BinMulUnchecked
	BinDiv
	BinRem
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	// BinOffset moves a pointer by a count of pointee-sized elements.
	BinOffset
)

var binOpNames = [...]string{
	BinAdd:          "Add",
	BinAddUnchecked: "AddUnchecked",
	BinSub:          "Sub",
	BinSubUnchecked: "SubUnchecked",
	BinMul:          "Mul",
	BinMulUnchecked: "MulUnchecked",
	BinDiv:          "Div",
	BinRem:          "Rem",
	BinBitAnd:       "BitAnd",
	BinBitOr:        "BitOr",
	BinBitXor:       "BitXor",
	BinShl:          "Shl",
	BinShr:          "Shr",
	BinEq:           "Eq",
	BinNe:           "Ne",
	BinLt:           "Lt",
	BinLe:           "Le",
	BinGt:           "Gt",
	BinGe:           "Ge",
	BinOffset:       "Offset",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return "BinOp?"
}

// IsComparison reports whether the operator yields a bool.
func (op BinOp) IsComparison() bool {
	return op >= BinEq && op <= BinGe
}

type BinaryOp struct {
	Op          BinOp
	Left, Right Operand
}

type UnOp uint8

const (
	UnNot UnOp = iota
	UnNeg
)

type UnaryOp struct {
	Op      UnOp
	Operand Operand
}

// CastKind enumerates the supported conversions.
type CastKind uint8

const (
	// CastIntToInt converts between integer-like types (bool, char, ints).
	CastIntToInt CastKind = iota
	// CastPtrToPtr reinterprets a pointer as pointing to another type.
	CastPtrToPtr
)

type CastOp struct {
	Kind    CastKind
	Operand Operand
	Type    types.TypeID
}

type AggregateKind uint8

const (
	AggTuple AggregateKind = iota
	AggArray
	// AggAdt builds a struct, a variant of an enum, or a union from its
	// active field.
	AggAdt
)

type AggregateRV struct {
	Kind    AggregateKind
	Type    types.TypeID
	Variant int `msgpack:",omitempty"` // enum variant or union field
	Ops     []Operand
}
