package core

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Dump writes the textual form of p. The output is stable and Parse reads
// it back into an equal program.
func Dump(w io.Writer, p *Program) error {
	if w == nil || p == nil {
		return nil
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "program start f%d\n", p.Start)
	for i := range p.Functions {
		var sb strings.Builder
		dumpFunc(&sb, FnName(i), &p.Functions[i])
		bw.WriteString(sb.String())
	}
	return bw.Flush()
}

// DumpString returns the dump of p.
func DumpString(p *Program) string {
	var sb strings.Builder
	_ = Dump(&sb, p)
	return sb.String()
}

func dumpFunc(sb *strings.Builder, name FnName, fn *Function) {
	fmt.Fprintf(sb, "\nfn f%d(", name)
	for i, a := range fn.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "_%d", a)
	}
	sb.WriteString(") -> ")
	if fn.Ret != nil {
		fmt.Fprintf(sb, "_%d", *fn.Ret)
	} else {
		sb.WriteString("_")
	}
	fmt.Fprintf(sb, " start bb%d {\n", fn.Start)
	for i, ty := range fn.Locals {
		fmt.Fprintf(sb, "  let _%d: ", i)
		writeType(sb, ty)
		sb.WriteString(";\n")
	}
	for b := range fn.Blocks {
		bb := &fn.Blocks[b]
		fmt.Fprintf(sb, "  bb%d: {\n", b)
		for s := range bb.Statements {
			sb.WriteString("    ")
			writeStatement(sb, &bb.Statements[s])
			sb.WriteString(";\n")
		}
		sb.WriteString("    ")
		writeTerminator(sb, &bb.Terminator)
		sb.WriteString(";\n  }\n")
	}
	sb.WriteString("}\n")
}

func writeStatement(sb *strings.Builder, s *Statement) {
	switch s.Kind {
	case StmtAssign:
		writePlace(sb, &s.Assign.Dest)
		sb.WriteString(" = ")
		writeValue(sb, &s.Assign.Source)
	case StmtStorageLive:
		fmt.Fprintf(sb, "storage_live _%d", s.Local)
	case StmtStorageDead:
		fmt.Fprintf(sb, "storage_dead _%d", s.Local)
	case StmtSetDiscriminant:
		sb.WriteString("set_discriminant(")
		writePlace(sb, &s.SetDiscriminant.Dest)
		fmt.Fprintf(sb, ", %s)", s.SetDiscriminant.Value)
	default:
		fmt.Fprintf(sb, "<stmt %d>", s.Kind)
	}
}

func writeTerminator(sb *strings.Builder, t *Terminator) {
	switch t.Kind {
	case TermGoto:
		fmt.Fprintf(sb, "goto bb%d", t.Goto)
	case TermIf:
		sb.WriteString("if ")
		writeValue(sb, &t.If.Cond)
		fmt.Fprintf(sb, " then bb%d else bb%d", t.If.Then, t.If.Else)
	case TermSwitchInt:
		sb.WriteString("switch ")
		writeValue(sb, &t.SwitchInt.Value)
		sb.WriteString(" [")
		for i, c := range t.SwitchInt.Cases {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "(%s, bb%d)", c.Value, c.Target)
		}
		fmt.Fprintf(sb, "] otherwise bb%d", t.SwitchInt.Otherwise)
	case TermCall:
		sb.WriteString("call ")
		writeValue(sb, &t.Call.Callee)
		writeValueList(sb, "(", t.Call.Args, ")")
		writeRetNext(sb, t.Call.Ret, t.Call.Next)
	case TermIntrinsic:
		fmt.Fprintf(sb, "intrinsic %s", t.Intrinsic.Intrinsic)
		writeValueList(sb, "(", t.Intrinsic.Args, ")")
		writeRetNext(sb, t.Intrinsic.Ret, t.Intrinsic.Next)
	case TermReturn:
		sb.WriteString("return")
	case TermExit:
		sb.WriteString("exit")
	case TermUnreachable:
		sb.WriteString("unreachable")
	default:
		fmt.Fprintf(sb, "<term %d>", t.Kind)
	}
}

func writeRetNext(sb *strings.Builder, ret *PlaceExpr, next *BbName) {
	sb.WriteString(" ret ")
	if ret != nil {
		writePlace(sb, ret)
	} else {
		sb.WriteString("_")
	}
	if next != nil {
		fmt.Fprintf(sb, " next bb%d", *next)
	} else {
		sb.WriteString(" next _")
	}
}

func writeValueList(sb *strings.Builder, open string, vs []ValueExpr, close string) {
	sb.WriteString(open)
	for i := range vs {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeValue(sb, &vs[i])
	}
	sb.WriteString(close)
}

func writeValue(sb *strings.Builder, v *ValueExpr) {
	if v == nil {
		sb.WriteString("<nil>")
		return
	}
	switch v.Kind {
	case ValConstant:
		sb.WriteString("const(")
		c := v.Constant.Value
		switch c.Kind {
		case ConstInt:
			fmt.Fprintf(sb, "int %s", c.Int)
		case ConstBool:
			fmt.Fprintf(sb, "bool %t", c.Bool)
		case ConstFloat:
			fmt.Fprintf(sb, "float %d", c.Float)
		case ConstFnPointer:
			fmt.Fprintf(sb, "fn f%d", c.Fn)
		}
		sb.WriteString(", ")
		writeType(sb, v.Constant.Type)
		sb.WriteString(")")
	case ValTuple:
		sb.WriteString("tuple(")
		writeType(sb, v.Tuple.Type)
		writeValueList(sb, ", [", v.Tuple.Elems, "])")
	case ValUnion:
		sb.WriteString("union(")
		writeType(sb, v.Union.Type)
		fmt.Fprintf(sb, ", %d, ", v.Union.Field)
		writeValue(sb, v.Union.Value)
		sb.WriteString(")")
	case ValVariant:
		sb.WriteString("variant(")
		writeType(sb, v.Variant.Type)
		fmt.Fprintf(sb, ", %s, ", v.Variant.Discriminant)
		writeValue(sb, v.Variant.Data)
		sb.WriteString(")")
	case ValGetDiscriminant:
		sb.WriteString("discriminant(")
		writePlace(sb, v.GetDiscriminant.Place)
		sb.WriteString(")")
	case ValLoad:
		if v.Load.Move {
			sb.WriteString("move(")
		} else {
			sb.WriteString("copy(")
		}
		writePlace(sb, v.Load.Place)
		sb.WriteString(")")
	case ValAddrOf:
		sb.WriteString("addr_of(")
		writePlace(sb, v.AddrOf.Place)
		sb.WriteString(", ")
		writeType(sb, v.AddrOf.Type)
		sb.WriteString(")")
	case ValUnOp:
		op := v.UnOp.Op
		if op.Kind == UnOpCast {
			fmt.Fprintf(sb, "cast(%s, %s, ", castNames[op.Cast.Kind], op.Cast.To)
		} else {
			fmt.Fprintf(sb, "unop(%s, ", unOpName(op))
		}
		writeValue(sb, v.UnOp.Operand)
		sb.WriteString(")")
	case ValBinOp:
		fmt.Fprintf(sb, "binop(%s, ", binOpName(v.BinOp.Op))
		writeValue(sb, v.BinOp.Left)
		sb.WriteString(", ")
		writeValue(sb, v.BinOp.Right)
		sb.WriteString(")")
	default:
		fmt.Fprintf(sb, "<value %d>", v.Kind)
	}
}

func writePlace(sb *strings.Builder, p *PlaceExpr) {
	if p == nil {
		sb.WriteString("<nil>")
		return
	}
	switch p.Kind {
	case PlaceLocal:
		fmt.Fprintf(sb, "_%d", p.Local)
	case PlaceDeref:
		sb.WriteString("deref(")
		writeValue(sb, p.Deref.Operand)
		sb.WriteString(", ")
		writeType(sb, p.Deref.Type)
		sb.WriteString(")")
	case PlaceField:
		sb.WriteString("field(")
		writePlace(sb, p.Field.Root)
		fmt.Fprintf(sb, ", %d)", p.Field.Field)
	case PlaceIndex:
		sb.WriteString("index(")
		writePlace(sb, p.Index.Root)
		sb.WriteString(", ")
		writeValue(sb, p.Index.Index)
		sb.WriteString(")")
	case PlaceDowncast:
		sb.WriteString("downcast(")
		writePlace(sb, p.Downcast.Root)
		fmt.Fprintf(sb, ", %s)", p.Downcast.Discriminant)
	default:
		fmt.Fprintf(sb, "<place %d>", p.Kind)
	}
}

func writeType(sb *strings.Builder, t Type) {
	switch t.Kind {
	case TyInt:
		sb.WriteString(t.Int.String())
		return
	case TyBool:
		sb.WriteString("bool")
		return
	case TyFloat:
		fmt.Fprintf(sb, "f%d", t.Float*8)
		return
	}
	switch {
	case t.Kind == TyPtr && t.Ptr != nil:
		if t.Ptr.Kind.Safe() {
			inh := "inhabited"
			if !t.Ptr.Pointee.Inhabited {
				inh = "uninhabited"
			}
			fmt.Fprintf(sb, "ptr(%s, %d, %d, %s)", t.Ptr.Kind, t.Ptr.Pointee.Size, t.Ptr.Pointee.Align, inh)
		} else {
			fmt.Fprintf(sb, "ptr(%s)", t.Ptr.Kind)
		}
	case t.Kind == TyTuple && t.Tuple != nil:
		fmt.Fprintf(sb, "tuple(%d, %d, ", t.Tuple.Size, t.Tuple.Align)
		writeFields(sb, t.Tuple.Fields)
		sb.WriteString(")")
	case t.Kind == TyArray && t.Array != nil:
		sb.WriteString("array(")
		writeType(sb, t.Array.Elem)
		fmt.Fprintf(sb, ", %d)", t.Array.Count)
	case t.Kind == TyUnion && t.Union != nil:
		fmt.Fprintf(sb, "union(%d, %d, ", t.Union.Size, t.Union.Align)
		writeFields(sb, t.Union.Fields)
		sb.WriteString(", [")
		for i, c := range t.Union.Chunks {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "(%d, %d)", c.Offset, c.Size)
		}
		sb.WriteString("])")
	case t.Kind == TyEnum && t.Enum != nil:
		e := t.Enum
		fmt.Fprintf(sb, "enum(%d, %d, %s, [", e.Size, e.Align, e.DiscriminantType)
		for i, v := range e.Variants {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "variant(%s, ", v.Discriminant)
			writeType(sb, v.Data)
			sb.WriteString(", [")
			for j, w := range v.Tagger {
				if j > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(sb, "(%d, %s, %s)", w.Offset, w.Int, w.Value)
			}
			sb.WriteString("])")
		}
		sb.WriteString("], ")
		writeDiscriminator(sb, &e.Discriminator)
		sb.WriteString(")")
	default:
		fmt.Fprintf(sb, "<type %s>", t.Kind)
	}
}

func writeFields(sb *strings.Builder, fields []Field) {
	sb.WriteString("[")
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%d: ", f.Offset)
		writeType(sb, f.Type)
	}
	sb.WriteString("]")
}

func writeDiscriminator(sb *strings.Builder, d *Discriminator) {
	switch d.Kind {
	case DiscKnown:
		fmt.Fprintf(sb, "known(%s)", d.Known)
	case DiscInvalid:
		sb.WriteString("invalid")
	case DiscBranch:
		fmt.Fprintf(sb, "branch(%d, %s, [", d.Offset, d.Int)
		for i := range d.Cases {
			c := &d.Cases[i]
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "(%s, %s) => ", c.Lo, c.Hi)
			writeDiscriminator(sb, &c.Child)
		}
		sb.WriteString("], ")
		if d.Fallback != nil {
			writeDiscriminator(sb, d.Fallback)
		} else {
			sb.WriteString("invalid")
		}
		sb.WriteString(")")
	default:
		fmt.Fprintf(sb, "<discriminator %d>", d.Kind)
	}
}

var castNames = [...]string{
	CastIntToInt:  "int_to_int",
	CastBoolToInt: "bool_to_int",
}

var (
	intUnOpNames   = [...]string{IntNeg: "neg", IntBitNot: "bitnot"}
	boolUnOpNames  = [...]string{BoolNot: "not"}
	floatUnOpNames = [...]string{FloatNeg: "fneg"}

	intBinOpNames = [...]string{
		IntAdd: "add", IntAddUnchecked: "add_unchecked",
		IntSub: "sub", IntSubUnchecked: "sub_unchecked",
		IntMul: "mul", IntMulUnchecked: "mul_unchecked",
		IntDiv: "div", IntRem: "rem",
		IntShl: "shl", IntShr: "shr",
		IntBitAnd: "bitand", IntBitOr: "bitor", IntBitXor: "bitxor",
	}
	intRelNames   = [...]string{RelLt: "lt", RelLe: "le", RelGt: "gt", RelGe: "ge", RelEq: "eq", RelNe: "ne"}
	floatRelNames = [...]string{RelLt: "flt", RelLe: "fle", RelGt: "fgt", RelGe: "fge", RelEq: "feq", RelNe: "fne"}
	boolBinNames  = [...]string{
		BoolBitAnd: "bool_and", BoolBitOr: "bool_or", BoolBitXor: "bool_xor",
		BoolEq: "bool_eq", BoolNe: "bool_ne",
	}
	floatBinNames = [...]string{FloatAdd: "fadd", FloatSub: "fsub", FloatMul: "fmul", FloatDiv: "fdiv", FloatRem: "frem"}
)

func unOpName(op UnOp) string {
	switch op.Kind {
	case UnOpInt:
		return intUnOpNames[op.Int]
	case UnOpBool:
		return boolUnOpNames[op.Bool]
	case UnOpFloat:
		return floatUnOpNames[op.Float]
	}
	return "?"
}

func binOpName(op BinOp) string {
	switch op.Kind {
	case BinOpInt:
		return intBinOpNames[op.Int]
	case BinOpIntRel:
		return intRelNames[op.Rel]
	case BinOpBool:
		return boolBinNames[op.Bool]
	case BinOpFloat:
		return floatBinNames[op.Float]
	case BinOpFloatRel:
		return floatRelNames[op.Rel]
	case BinOpPtrOffset:
		if op.InBounds {
			return "offset_inbounds"
		}
		return "offset"
	}
	return "?"
}

func unOpByName(name string) (UnOp, bool) {
	for i, n := range intUnOpNames {
		if n == name {
			return UnOp{Kind: UnOpInt, Int: IntUnOp(i)}, true
		}
	}
	for i, n := range boolUnOpNames {
		if n == name {
			return UnOp{Kind: UnOpBool, Bool: BoolUnOp(i)}, true
		}
	}
	for i, n := range floatUnOpNames {
		if n == name {
			return UnOp{Kind: UnOpFloat, Float: FloatUnOp(i)}, true
		}
	}
	return UnOp{}, false
}

func binOpByName(name string) (BinOp, bool) {
	switch name {
	case "offset":
		return BinOp{Kind: BinOpPtrOffset}, true
	case "offset_inbounds":
		return BinOp{Kind: BinOpPtrOffset, InBounds: true}, true
	}
	for i, n := range intBinOpNames {
		if n == name {
			return BinOp{Kind: BinOpInt, Int: IntBinOp(i)}, true
		}
	}
	for i, n := range intRelNames {
		if n == name {
			return BinOp{Kind: BinOpIntRel, Rel: RelOp(i)}, true
		}
	}
	for i, n := range floatRelNames {
		if n == name {
			return BinOp{Kind: BinOpFloatRel, Rel: RelOp(i)}, true
		}
	}
	for i, n := range boolBinNames {
		if n == name {
			return BinOp{Kind: BinOpBool, Bool: BoolBinOp(i)}, true
		}
	}
	for i, n := range floatBinNames {
		if n == name {
			return BinOp{Kind: BinOpFloat, Float: FloatBinOp(i)}, true
		}
	}
	return BinOp{}, false
}

func castByName(name string) (CastKind, bool) {
	for i, n := range castNames {
		if n == name {
			return CastKind(i), true
		}
	}
	return 0, false
}
