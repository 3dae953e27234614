package core

type LocalName int32
type BbName int32
type FnName int32

// ConstKind enumerates constant forms.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstBool
	ConstFloat
	ConstFnPointer
)

// Constant is a literal value. Float holds the IEEE-754 bit pattern.
type Constant struct {
	Kind  ConstKind
	Int   Int
	Bool  bool
	Float uint64
	Fn    FnName
}

// ValueKind enumerates value expression forms.
type ValueKind uint8

const (
	// ValConstant represents a literal of a given type.
	ValConstant ValueKind = iota
	// ValTuple builds a tuple or array from element values.
	ValTuple
	// ValUnion builds a union with one initialized field.
	ValUnion
	// ValVariant builds an enum value of a given variant.
	ValVariant
	// ValGetDiscriminant reads the discriminant of an enum place.
	ValGetDiscriminant
	// ValLoad reads the value stored in a place.
	ValLoad
	// ValAddrOf takes the address of a place.
	ValAddrOf
	// ValUnOp applies a unary operator.
	ValUnOp
	// ValBinOp applies a binary operator.
	ValBinOp
)

// ValueExpr is an expression that produces a value.
type ValueExpr struct {
	Kind ValueKind

	Constant        ConstantExpr
	Tuple           TupleExpr
	Union           UnionExpr
	Variant         VariantExpr
	GetDiscriminant GetDiscriminantExpr
	Load            LoadExpr
	AddrOf          AddrOfExpr
	UnOp            UnOpExpr
	BinOp           BinOpExpr
}

type ConstantExpr struct {
	Value Constant
	Type  Type
}

type TupleExpr struct {
	Elems []ValueExpr
	Type  Type
}

type UnionExpr struct {
	Field int
	Value *ValueExpr
	Type  Type
}

type VariantExpr struct {
	Discriminant Int
	Data         *ValueExpr
	Type         Type
}

type GetDiscriminantExpr struct {
	Place *PlaceExpr
}

// LoadExpr reads a place. Move marks loads that consume the place; the
// machine treats both the same but the distinction is kept in dumps.
type LoadExpr struct {
	Place *PlaceExpr
	Move  bool
}

type AddrOfExpr struct {
	Place *PlaceExpr
	Type  Type
}

// UnOpKind enumerates unary operator families.
type UnOpKind uint8

const (
	UnOpInt UnOpKind = iota
	UnOpBool
	UnOpFloat
	UnOpCast
)

type IntUnOp uint8

const (
	IntNeg IntUnOp = iota
	IntBitNot
)

type BoolUnOp uint8

const (
	BoolNot BoolUnOp = iota
)

type FloatUnOp uint8

const (
	FloatNeg FloatUnOp = iota
)

type CastKind uint8

const (
	CastIntToInt CastKind = iota
	CastBoolToInt
)

type CastOp struct {
	Kind CastKind
	To   IntType
}

type UnOp struct {
	Kind  UnOpKind
	Int   IntUnOp
	Bool  BoolUnOp
	Float FloatUnOp
	Cast  CastOp
}

type UnOpExpr struct {
	Op      UnOp
	Operand *ValueExpr
}

// BinOpKind enumerates binary operator families.
type BinOpKind uint8

const (
	BinOpInt BinOpKind = iota
	BinOpIntRel
	BinOpBool
	BinOpFloat
	BinOpFloatRel
	BinOpPtrOffset
)

type IntBinOp uint8

const (
	IntAdd IntBinOp = iota
	IntAddUnchecked
	IntSub
	IntSubUnchecked
	IntMul
	IntMulUnchecked
	IntDiv
	IntRem
	IntShl
	IntShr
	IntBitAnd
	IntBitOr
	IntBitXor
)

// RelOp is a comparison, shared by integer and float relations.
type RelOp uint8

const (
	RelLt RelOp = iota
	RelLe
	RelGt
	RelGe
	RelEq
	RelNe
)

type BoolBinOp uint8

const (
	BoolBitAnd BoolBinOp = iota
	BoolBitOr
	BoolBitXor
	BoolEq
	BoolNe
)

type FloatBinOp uint8

const (
	FloatAdd FloatBinOp = iota
	FloatSub
	FloatMul
	FloatDiv
	FloatRem
)

type BinOp struct {
	Kind     BinOpKind
	Int      IntBinOp
	Rel      RelOp
	Bool     BoolBinOp
	Float    FloatBinOp
	InBounds bool // BinOpPtrOffset
}

type BinOpExpr struct {
	Op          BinOp
	Left, Right *ValueExpr
}

// PlaceKind enumerates place expression forms.
type PlaceKind uint8

const (
	PlaceLocal PlaceKind = iota
	PlaceDeref
	PlaceField
	PlaceIndex
	PlaceDowncast
)

// PlaceExpr is an expression that denotes a memory location.
type PlaceExpr struct {
	Kind PlaceKind

	Local    LocalName
	Deref    DerefPlace
	Field    FieldPlace
	Index    IndexPlace
	Downcast DowncastPlace
}

type DerefPlace struct {
	Operand *ValueExpr
	Type    Type
}

type FieldPlace struct {
	Root  *PlaceExpr
	Field int
}

type IndexPlace struct {
	Root  *PlaceExpr
	Index *ValueExpr
}

type DowncastPlace struct {
	Root         *PlaceExpr
	Discriminant Int
}
