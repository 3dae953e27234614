package mir

import "minimize/internal/types"

// Constructors for hand-written MIR, mainly used by tests and fixtures.

func Copy(p Place) Operand { return Operand{Kind: OperandCopy, Place: p} }

func Move(p Place) Operand { return Operand{Kind: OperandMove, Place: p} }

func ConstOperand(c Const) Operand { return Operand{Kind: OperandConst, Const: c} }

// Scalar is a constant of an integer, bool, char or float type given by its
// raw bits.
func Scalar(ty types.TypeID, bits uint64) Const {
	return Const{Kind: ConstScalar, Type: ty, Bits: bits}
}

// ZeroSized is the value of a zero-sized type.
func ZeroSized(ty types.TypeID) Const {
	return Const{Kind: ConstZeroSized, Type: ty}
}

// FnRef names function fn, whose item type is ty.
func FnRef(ty types.TypeID, fn FuncID) Const {
	return Const{Kind: ConstFn, Type: ty, Fn: fn}
}

// AggregateConst builds a constant tuple, struct, array, union or variant.
func AggregateConst(ty types.TypeID, variant int, fields ...Const) Const {
	return Const{Kind: ConstAggregate, Type: ty, Variant: variant, Fields: fields}
}

// ItemRef refers to crate constant item.
func ItemRef(ty types.TypeID, item ConstID) Const {
	return Const{Kind: ConstUnevaluated, Type: ty, Item: item}
}

func Use(op Operand) RValue { return RValue{Kind: RValueUse, Use: op} }

func Binary(op BinOp, l, r Operand) RValue {
	return RValue{Kind: RValueBinaryOp, Binary: BinaryOp{Op: op, Left: l, Right: r}}
}

func Unary(op UnOp, x Operand) RValue {
	return RValue{Kind: RValueUnaryOp, Unary: UnaryOp{Op: op, Operand: x}}
}

func Cast(kind CastKind, x Operand, to types.TypeID) RValue {
	return RValue{Kind: RValueCast, Cast: CastOp{Kind: kind, Operand: x, Type: to}}
}

func Aggregate(kind AggregateKind, ty types.TypeID, variant int, ops ...Operand) RValue {
	return RValue{Kind: RValueAggregate, Aggregate: AggregateRV{Kind: kind, Type: ty, Variant: variant, Ops: ops}}
}

func Discriminant(p Place) RValue { return RValue{Kind: RValueDiscriminant, Place: p} }

func Ref(p Place, mutable bool) RValue { return RValue{Kind: RValueRef, Place: p, Mutable: mutable} }

func AddressOf(p Place, mutable bool) RValue {
	return RValue{Kind: RValueAddressOf, Place: p, Mutable: mutable}
}

func Assign(dst Place, src RValue) Statement {
	return Statement{Kind: StmtAssign, Assign: AssignStmt{Dst: dst, Src: src}}
}

func StorageLive(l LocalID) Statement { return Statement{Kind: StmtStorageLive, Local: l} }

func StorageDead(l LocalID) Statement { return Statement{Kind: StmtStorageDead, Local: l} }

func SetDiscriminant(p Place, variant int) Statement {
	return Statement{Kind: StmtSetDiscriminant, SetDiscriminant: SetDiscriminantStmt{Place: p, Variant: variant}}
}

func Goto(target BlockID) Terminator {
	return Terminator{Kind: TermGoto, Goto: GotoTerm{Target: target}}
}

func SwitchInt(discr Operand, targets []SwitchTarget, otherwise BlockID) Terminator {
	return Terminator{Kind: TermSwitchInt, SwitchInt: SwitchIntTerm{Discr: discr, Targets: targets, Otherwise: otherwise}}
}

func Return() Terminator { return Terminator{Kind: TermReturn} }

func Unreachable() Terminator { return Terminator{Kind: TermUnreachable} }

func Call(fn Operand, args []Operand, dst Place, target BlockID) Terminator {
	return Terminator{Kind: TermCall, Call: CallTerm{Func: fn, Args: args, Dst: dst, Target: target}}
}

// NewBlock assembles a block.
func NewBlock(term Terminator, stmts ...Statement) Block {
	return Block{Stmts: stmts, Term: term}
}
