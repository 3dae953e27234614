package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseError locates a syntax error in a dump.
type ParseError struct {
	Line, Col int
	Msg       string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

// Parse reads the textual form written by Dump.
func Parse(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	prog, err := p.program()
	if err != nil {
		return nil, err
	}
	return prog, nil
}

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokPunct
)

type token struct {
	kind      tokKind
	text      string
	line, col int
}

func lex(src string) ([]token, error) {
	var toks []token
	line, col := 1, 1
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		start := token{line: line, col: col}
		advance := func(n int) {
			for k := 0; k < n; k++ {
				if rs[i] == '\n' {
					line++
					col = 1
				} else {
					col++
				}
				i++
			}
		}
		switch {
		case r == '\n' || unicode.IsSpace(r):
			advance(1)
			continue
		case r == '#':
			for i < len(rs) && rs[i] != '\n' {
				advance(1)
			}
			continue
		case r == '_' || unicode.IsLetter(r):
			j := i
			for j < len(rs) && (rs[j] == '_' || unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j])) {
				j++
			}
			start.kind, start.text = tokIdent, string(rs[i:j])
			advance(j - i)
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			j := i + 1
			for j < len(rs) && unicode.IsDigit(rs[j]) {
				j++
			}
			start.kind, start.text = tokNumber, string(rs[i:j])
			advance(j - i)
		case (r == '-' || r == '=') && i+1 < len(rs) && rs[i+1] == '>':
			start.kind, start.text = tokPunct, string(rs[i:i+2])
			advance(2)
		case strings.ContainsRune("()[]{},:;=", r):
			start.kind, start.text = tokPunct, string(r)
			advance(1)
		default:
			return nil, &ParseError{Line: line, Col: col, Msg: fmt.Sprintf("unexpected character %q", r)}
		}
		toks = append(toks, start)
	}
	toks = append(toks, token{kind: tokEOF, line: line, col: col})
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &ParseError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(text string) error {
	t := p.next()
	if t.kind == tokEOF || t.text != text {
		return p.errorf(t, "expected %q, found %q", text, t.text)
	}
	return nil
}

func (p *parser) accept(text string) bool {
	if t := p.peek(); t.kind != tokEOF && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) ident() (token, error) {
	t := p.next()
	if t.kind != tokIdent {
		return t, p.errorf(t, "expected identifier, found %q", t.text)
	}
	return t, nil
}

func (p *parser) integer() (Int, error) {
	t := p.next()
	if t.kind != tokNumber {
		return Int{}, p.errorf(t, "expected integer, found %q", t.text)
	}
	v, err := ParseInt(t.text)
	if err != nil {
		return Int{}, p.errorf(t, "%v", err)
	}
	return v, nil
}

func (p *parser) count() (int, error) {
	t := p.next()
	if t.kind != tokNumber {
		return 0, p.errorf(t, "expected count, found %q", t.text)
	}
	n, err := strconv.Atoi(t.text)
	if err != nil || n < 0 {
		return 0, p.errorf(t, "invalid count %q", t.text)
	}
	return n, nil
}

func (p *parser) uint64() (uint64, error) {
	t := p.next()
	n, err := strconv.ParseUint(t.text, 10, 64)
	if t.kind != tokNumber || err != nil {
		return 0, p.errorf(t, "expected unsigned integer, found %q", t.text)
	}
	return n, nil
}

// name parses a prefixed index such as _3, bb2 or f0.
func (p *parser) name(prefix string) (int32, error) {
	t, err := p.ident()
	if err != nil {
		return 0, err
	}
	digits, ok := strings.CutPrefix(t.text, prefix)
	if !ok || digits == "" {
		return 0, p.errorf(t, "expected %sN, found %q", prefix, t.text)
	}
	n, err := strconv.ParseInt(digits, 10, 32)
	if err != nil {
		return 0, p.errorf(t, "invalid name %q", t.text)
	}
	return int32(n), nil
}

func (p *parser) program() (*Program, error) {
	if err := p.expect("program"); err != nil {
		return nil, err
	}
	if err := p.expect("start"); err != nil {
		return nil, err
	}
	start, err := p.name("f")
	if err != nil {
		return nil, err
	}
	prog := &Program{Start: FnName(start)}
	for p.peek().kind != tokEOF {
		t := p.peek()
		if err := p.expect("fn"); err != nil {
			return nil, err
		}
		n, err := p.name("f")
		if err != nil {
			return nil, err
		}
		if int(n) != len(prog.Functions) {
			return nil, p.errorf(t, "function f%d out of order, expected f%d", n, len(prog.Functions))
		}
		fn, err := p.function()
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, *fn)
	}
	return prog, nil
}

func (p *parser) function() (*Function, error) {
	fn := &Function{}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	for !p.accept(")") {
		if len(fn.Args) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		a, err := p.name("_")
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, LocalName(a))
	}
	if err := p.expect("->"); err != nil {
		return nil, err
	}
	if !p.accept("_") {
		r, err := p.name("_")
		if err != nil {
			return nil, err
		}
		ret := LocalName(r)
		fn.Ret = &ret
	}
	if err := p.expect("start"); err != nil {
		return nil, err
	}
	start, err := p.name("bb")
	if err != nil {
		return nil, err
	}
	fn.Start = BbName(start)
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	for p.accept("let") {
		t := p.peek()
		l, err := p.name("_")
		if err != nil {
			return nil, err
		}
		if int(l) != len(fn.Locals) {
			return nil, p.errorf(t, "local _%d out of order", l)
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		ty, err := p.typ()
		if err != nil {
			return nil, err
		}
		if err := p.expect(";"); err != nil {
			return nil, err
		}
		fn.Locals = append(fn.Locals, ty)
	}
	for !p.accept("}") {
		t := p.peek()
		b, err := p.name("bb")
		if err != nil {
			return nil, err
		}
		if int(b) != len(fn.Blocks) {
			return nil, p.errorf(t, "block bb%d out of order", b)
		}
		bb, err := p.block()
		if err != nil {
			return nil, err
		}
		fn.Blocks = append(fn.Blocks, *bb)
	}
	return fn, nil
}

var terminatorWords = map[string]bool{
	"goto": true, "if": true, "switch": true, "call": true, "intrinsic": true,
	"return": true, "exit": true, "unreachable": true,
}

func (p *parser) block() (*BasicBlock, error) {
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	bb := &BasicBlock{}
	for {
		t := p.peek()
		if t.kind == tokIdent && terminatorWords[t.text] {
			term, err := p.terminator()
			if err != nil {
				return nil, err
			}
			bb.Terminator = *term
			break
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		bb.Statements = append(bb.Statements, *st)
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return bb, nil
}

func (p *parser) statement() (*Statement, error) {
	var st Statement
	switch {
	case p.accept("storage_live"), p.accept("storage_dead"):
		st.Kind = StmtStorageLive
		if p.toks[p.pos-1].text == "storage_dead" {
			st.Kind = StmtStorageDead
		}
		l, err := p.name("_")
		if err != nil {
			return nil, err
		}
		st.Local = LocalName(l)
	case p.accept("set_discriminant"):
		st.Kind = StmtSetDiscriminant
		if err := p.expect("("); err != nil {
			return nil, err
		}
		dest, err := p.place()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		v, err := p.integer()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		st.SetDiscriminant = SetDiscriminantStmt{Dest: *dest, Value: v}
	default:
		st.Kind = StmtAssign
		dest, err := p.place()
		if err != nil {
			return nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		src, err := p.value()
		if err != nil {
			return nil, err
		}
		st.Assign = AssignStmt{Dest: *dest, Source: *src}
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	return &st, nil
}

func (p *parser) terminator() (*Terminator, error) {
	kw := p.next()
	var t Terminator
	switch kw.text {
	case "goto":
		t.Kind = TermGoto
		b, err := p.name("bb")
		if err != nil {
			return nil, err
		}
		t.Goto = BbName(b)
	case "if":
		t.Kind = TermIf
		cond, err := p.value()
		if err != nil {
			return nil, err
		}
		if err := p.expect("then"); err != nil {
			return nil, err
		}
		then, err := p.name("bb")
		if err != nil {
			return nil, err
		}
		if err := p.expect("else"); err != nil {
			return nil, err
		}
		els, err := p.name("bb")
		if err != nil {
			return nil, err
		}
		t.If = IfTerm{Cond: *cond, Then: BbName(then), Else: BbName(els)}
	case "switch":
		t.Kind = TermSwitchInt
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		t.SwitchInt.Value = *v
		if err := p.expect("["); err != nil {
			return nil, err
		}
		for !p.accept("]") {
			if len(t.SwitchInt.Cases) > 0 {
				if err := p.expect(","); err != nil {
					return nil, err
				}
			}
			if err := p.expect("("); err != nil {
				return nil, err
			}
			val, err := p.integer()
			if err != nil {
				return nil, err
			}
			if err := p.expect(","); err != nil {
				return nil, err
			}
			target, err := p.name("bb")
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			t.SwitchInt.Cases = append(t.SwitchInt.Cases, SwitchCase{Value: val, Target: BbName(target)})
		}
		if err := p.expect("otherwise"); err != nil {
			return nil, err
		}
		other, err := p.name("bb")
		if err != nil {
			return nil, err
		}
		t.SwitchInt.Otherwise = BbName(other)
	case "call":
		t.Kind = TermCall
		callee, err := p.value()
		if err != nil {
			return nil, err
		}
		args, err := p.valueList("(", ")")
		if err != nil {
			return nil, err
		}
		ret, next, err := p.retNext()
		if err != nil {
			return nil, err
		}
		t.Call = CallTerm{Callee: *callee, Args: args, Ret: ret, Next: next}
	case "intrinsic":
		t.Kind = TermIntrinsic
		id, err := p.ident()
		if err != nil {
			return nil, err
		}
		intr, ok := IntrinsicByName(id.text)
		if !ok {
			return nil, p.errorf(id, "unknown intrinsic %q", id.text)
		}
		args, err := p.valueList("(", ")")
		if err != nil {
			return nil, err
		}
		ret, next, err := p.retNext()
		if err != nil {
			return nil, err
		}
		t.Intrinsic = IntrinsicTerm{Intrinsic: intr, Args: args, Ret: ret, Next: next}
	case "return":
		t.Kind = TermReturn
	case "exit":
		t.Kind = TermExit
	case "unreachable":
		t.Kind = TermUnreachable
	default:
		return nil, p.errorf(kw, "expected terminator, found %q", kw.text)
	}
	return &t, nil
}

func (p *parser) retNext() (*PlaceExpr, *BbName, error) {
	if err := p.expect("ret"); err != nil {
		return nil, nil, err
	}
	var ret *PlaceExpr
	if !p.accept("_") {
		pl, err := p.place()
		if err != nil {
			return nil, nil, err
		}
		ret = pl
	}
	if err := p.expect("next"); err != nil {
		return nil, nil, err
	}
	var next *BbName
	if !p.accept("_") {
		b, err := p.name("bb")
		if err != nil {
			return nil, nil, err
		}
		bb := BbName(b)
		next = &bb
	}
	return ret, next, nil
}

func (p *parser) valueList(open, close string) ([]ValueExpr, error) {
	if err := p.expect(open); err != nil {
		return nil, err
	}
	var out []ValueExpr
	for !p.accept(close) {
		if len(out) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (p *parser) value() (*ValueExpr, error) {
	kw, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var v ValueExpr
	switch kw.text {
	case "const":
		v.Kind = ValConstant
		c, err := p.constant()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		ty, err := p.typ()
		if err != nil {
			return nil, err
		}
		v.Constant = ConstantExpr{Value: c, Type: ty}
	case "tuple":
		v.Kind = ValTuple
		ty, err := p.typ()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		elems, err := p.valueList("[", "]")
		if err != nil {
			return nil, err
		}
		v.Tuple = TupleExpr{Elems: elems, Type: ty}
	case "union":
		v.Kind = ValUnion
		ty, err := p.typ()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		field, err := p.count()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		inner, err := p.value()
		if err != nil {
			return nil, err
		}
		v.Union = UnionExpr{Field: field, Value: inner, Type: ty}
	case "variant":
		v.Kind = ValVariant
		ty, err := p.typ()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		d, err := p.integer()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		inner, err := p.value()
		if err != nil {
			return nil, err
		}
		v.Variant = VariantExpr{Discriminant: d, Data: inner, Type: ty}
	case "discriminant":
		v.Kind = ValGetDiscriminant
		pl, err := p.place()
		if err != nil {
			return nil, err
		}
		v.GetDiscriminant.Place = pl
	case "copy", "move":
		v.Kind = ValLoad
		pl, err := p.place()
		if err != nil {
			return nil, err
		}
		v.Load = LoadExpr{Place: pl, Move: kw.text == "move"}
	case "addr_of":
		v.Kind = ValAddrOf
		pl, err := p.place()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		ty, err := p.typ()
		if err != nil {
			return nil, err
		}
		v.AddrOf = AddrOfExpr{Place: pl, Type: ty}
	case "unop", "cast":
		v.Kind = ValUnOp
		opTok, err := p.ident()
		if err != nil {
			return nil, err
		}
		var op UnOp
		if kw.text == "cast" {
			ck, ok := castByName(opTok.text)
			if !ok {
				return nil, p.errorf(opTok, "unknown cast %q", opTok.text)
			}
			if err := p.expect(","); err != nil {
				return nil, err
			}
			to, err := p.typ()
			if err != nil {
				return nil, err
			}
			if to.Kind != TyInt {
				return nil, p.errorf(opTok, "cast target %s is not an integer type", to)
			}
			op = UnOp{Kind: UnOpCast, Cast: CastOp{Kind: ck, To: to.Int}}
		} else {
			var ok bool
			if op, ok = unOpByName(opTok.text); !ok {
				return nil, p.errorf(opTok, "unknown unary operator %q", opTok.text)
			}
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		operand, err := p.value()
		if err != nil {
			return nil, err
		}
		v.UnOp = UnOpExpr{Op: op, Operand: operand}
	case "binop":
		v.Kind = ValBinOp
		opTok, err := p.ident()
		if err != nil {
			return nil, err
		}
		op, ok := binOpByName(opTok.text)
		if !ok {
			return nil, p.errorf(opTok, "unknown binary operator %q", opTok.text)
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		left, err := p.value()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		right, err := p.value()
		if err != nil {
			return nil, err
		}
		v.BinOp = BinOpExpr{Op: op, Left: left, Right: right}
	default:
		return nil, p.errorf(kw, "unknown value expression %q", kw.text)
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return &v, nil
}

func (p *parser) constant() (Constant, error) {
	kw, err := p.ident()
	if err != nil {
		return Constant{}, err
	}
	switch kw.text {
	case "int":
		v, err := p.integer()
		return Constant{Kind: ConstInt, Int: v}, err
	case "bool":
		b, err := p.ident()
		if err != nil {
			return Constant{}, err
		}
		switch b.text {
		case "true":
			return Constant{Kind: ConstBool, Bool: true}, nil
		case "false":
			return Constant{Kind: ConstBool}, nil
		}
		return Constant{}, p.errorf(b, "expected true or false, found %q", b.text)
	case "float":
		bits, err := p.uint64()
		return Constant{Kind: ConstFloat, Float: bits}, err
	case "fn":
		f, err := p.name("f")
		return Constant{Kind: ConstFnPointer, Fn: FnName(f)}, err
	}
	return Constant{}, p.errorf(kw, "unknown constant kind %q", kw.text)
}

func (p *parser) place() (*PlaceExpr, error) {
	t := p.peek()
	if t.kind == tokIdent && strings.HasPrefix(t.text, "_") {
		l, err := p.name("_")
		if err != nil {
			return nil, err
		}
		return &PlaceExpr{Kind: PlaceLocal, Local: LocalName(l)}, nil
	}
	kw, err := p.ident()
	if err != nil {
		return nil, err
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var pl PlaceExpr
	switch kw.text {
	case "deref":
		pl.Kind = PlaceDeref
		operand, err := p.value()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		ty, err := p.typ()
		if err != nil {
			return nil, err
		}
		pl.Deref = DerefPlace{Operand: operand, Type: ty}
	case "field":
		pl.Kind = PlaceField
		root, err := p.place()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		f, err := p.count()
		if err != nil {
			return nil, err
		}
		pl.Field = FieldPlace{Root: root, Field: f}
	case "index":
		pl.Kind = PlaceIndex
		root, err := p.place()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		idx, err := p.value()
		if err != nil {
			return nil, err
		}
		pl.Index = IndexPlace{Root: root, Index: idx}
	case "downcast":
		pl.Kind = PlaceDowncast
		root, err := p.place()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		d, err := p.integer()
		if err != nil {
			return nil, err
		}
		pl.Downcast = DowncastPlace{Root: root, Discriminant: d}
	default:
		return nil, p.errorf(kw, "unknown place expression %q", kw.text)
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return &pl, nil
}

func (p *parser) typ() (Type, error) {
	kw, err := p.ident()
	if err != nil {
		return Type{}, err
	}
	switch kw.text {
	case "bool":
		return BoolTy(), nil
	case "f32":
		return FloatTy(4), nil
	case "f64":
		return FloatTy(8), nil
	case "u8", "u16", "u32", "u64", "i8", "i16", "i32", "i64":
		bitsN, _ := strconv.Atoi(kw.text[1:])
		return IntTy(IntType{Signed: kw.text[0] == 'i', Size: bitsN / 8}), nil
	}
	compound := map[string]func() (Type, error){
		"ptr":   p.ptrType,
		"tuple": p.tupleType,
		"array": p.arrayType,
		"union": p.unionType,
		"enum":  p.enumType,
	}
	parse, ok := compound[kw.text]
	if !ok {
		return Type{}, p.errorf(kw, "unknown type %q", kw.text)
	}
	if err := p.expect("("); err != nil {
		return Type{}, err
	}
	ty, err := parse()
	if err != nil {
		return Type{}, err
	}
	if err := p.expect(")"); err != nil {
		return Type{}, err
	}
	return ty, nil
}

func (p *parser) ptrType() (Type, error) {
	kt, err := p.ident()
	if err != nil {
		return Type{}, err
	}
	var kind PtrKind
	found := false
	for i, n := range ptrKindNames {
		if n == kt.text {
			kind, found = PtrKind(i), true
		}
	}
	if !found {
		return Type{}, p.errorf(kt, "unknown pointer kind %q", kt.text)
	}
	if !kind.Safe() {
		return PtrTy(kind, PointeeInfo{}), nil
	}
	var info PointeeInfo
	if err := p.expect(","); err != nil {
		return Type{}, err
	}
	if info.Size, err = p.count(); err != nil {
		return Type{}, err
	}
	if err := p.expect(","); err != nil {
		return Type{}, err
	}
	if info.Align, err = p.count(); err != nil {
		return Type{}, err
	}
	if err := p.expect(","); err != nil {
		return Type{}, err
	}
	inh, err := p.ident()
	if err != nil {
		return Type{}, err
	}
	switch inh.text {
	case "inhabited":
		info.Inhabited = true
	case "uninhabited":
	default:
		return Type{}, p.errorf(inh, "expected inhabited or uninhabited, found %q", inh.text)
	}
	return PtrTy(kind, info), nil
}

func (p *parser) sizeAlign() (int, int, error) {
	size, err := p.count()
	if err != nil {
		return 0, 0, err
	}
	if err := p.expect(","); err != nil {
		return 0, 0, err
	}
	align, err := p.count()
	if err != nil {
		return 0, 0, err
	}
	if err := p.expect(","); err != nil {
		return 0, 0, err
	}
	return size, align, nil
}

func (p *parser) fields() ([]Field, error) {
	if err := p.expect("["); err != nil {
		return nil, err
	}
	var out []Field
	for !p.accept("]") {
		if len(out) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		off, err := p.count()
		if err != nil {
			return nil, err
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		ty, err := p.typ()
		if err != nil {
			return nil, err
		}
		out = append(out, Field{Offset: off, Type: ty})
	}
	return out, nil
}

func (p *parser) tupleType() (Type, error) {
	size, align, err := p.sizeAlign()
	if err != nil {
		return Type{}, err
	}
	fields, err := p.fields()
	if err != nil {
		return Type{}, err
	}
	return TupleTy(fields, size, align), nil
}

func (p *parser) arrayType() (Type, error) {
	elem, err := p.typ()
	if err != nil {
		return Type{}, err
	}
	if err := p.expect(","); err != nil {
		return Type{}, err
	}
	n, err := p.count()
	if err != nil {
		return Type{}, err
	}
	return ArrayTy(elem, n), nil
}

func (p *parser) unionType() (Type, error) {
	size, align, err := p.sizeAlign()
	if err != nil {
		return Type{}, err
	}
	fields, err := p.fields()
	if err != nil {
		return Type{}, err
	}
	if err := p.expect(","); err != nil {
		return Type{}, err
	}
	if err := p.expect("["); err != nil {
		return Type{}, err
	}
	var chunks []Chunk
	for !p.accept("]") {
		if len(chunks) > 0 {
			if err := p.expect(","); err != nil {
				return Type{}, err
			}
		}
		if err := p.expect("("); err != nil {
			return Type{}, err
		}
		off, err := p.count()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect(","); err != nil {
			return Type{}, err
		}
		sz, err := p.count()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect(")"); err != nil {
			return Type{}, err
		}
		chunks = append(chunks, Chunk{Offset: off, Size: sz})
	}
	return Type{Kind: TyUnion, Union: &UnionType{Fields: fields, Chunks: chunks, Size: size, Align: align}}, nil
}

func (p *parser) intType() (IntType, error) {
	t := p.peek()
	ty, err := p.typ()
	if err != nil {
		return IntType{}, err
	}
	if ty.Kind != TyInt {
		return IntType{}, p.errorf(t, "expected integer type, found %s", ty)
	}
	return ty.Int, nil
}

func (p *parser) enumType() (Type, error) {
	size, align, err := p.sizeAlign()
	if err != nil {
		return Type{}, err
	}
	dt, err := p.intType()
	if err != nil {
		return Type{}, err
	}
	if err := p.expect(","); err != nil {
		return Type{}, err
	}
	if err := p.expect("["); err != nil {
		return Type{}, err
	}
	e := &EnumType{DiscriminantType: dt, Size: size, Align: align}
	for !p.accept("]") {
		if len(e.Variants) > 0 {
			if err := p.expect(","); err != nil {
				return Type{}, err
			}
		}
		v, err := p.variant()
		if err != nil {
			return Type{}, err
		}
		e.Variants = append(e.Variants, v)
	}
	if err := p.expect(","); err != nil {
		return Type{}, err
	}
	d, err := p.discriminator()
	if err != nil {
		return Type{}, err
	}
	e.Discriminator = *d
	return Type{Kind: TyEnum, Enum: e}, nil
}

func (p *parser) variant() (Variant, error) {
	if err := p.expect("variant"); err != nil {
		return Variant{}, err
	}
	if err := p.expect("("); err != nil {
		return Variant{}, err
	}
	d, err := p.integer()
	if err != nil {
		return Variant{}, err
	}
	if err := p.expect(","); err != nil {
		return Variant{}, err
	}
	data, err := p.typ()
	if err != nil {
		return Variant{}, err
	}
	if err := p.expect(","); err != nil {
		return Variant{}, err
	}
	if err := p.expect("["); err != nil {
		return Variant{}, err
	}
	v := Variant{Discriminant: d, Data: data}
	for !p.accept("]") {
		if len(v.Tagger) > 0 {
			if err := p.expect(","); err != nil {
				return Variant{}, err
			}
		}
		if err := p.expect("("); err != nil {
			return Variant{}, err
		}
		off, err := p.count()
		if err != nil {
			return Variant{}, err
		}
		if err := p.expect(","); err != nil {
			return Variant{}, err
		}
		it, err := p.intType()
		if err != nil {
			return Variant{}, err
		}
		if err := p.expect(","); err != nil {
			return Variant{}, err
		}
		val, err := p.integer()
		if err != nil {
			return Variant{}, err
		}
		if err := p.expect(")"); err != nil {
			return Variant{}, err
		}
		v.Tagger = append(v.Tagger, TagWrite{Offset: off, Int: it, Value: val})
	}
	if err := p.expect(")"); err != nil {
		return Variant{}, err
	}
	return v, nil
}

func (p *parser) discriminator() (*Discriminator, error) {
	kw, err := p.ident()
	if err != nil {
		return nil, err
	}
	switch kw.text {
	case "invalid":
		return &Discriminator{Kind: DiscInvalid}, nil
	case "known":
		if err := p.expect("("); err != nil {
			return nil, err
		}
		v, err := p.integer()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return &Discriminator{Kind: DiscKnown, Known: v}, nil
	case "branch":
	default:
		return nil, p.errorf(kw, "unknown discriminator %q", kw.text)
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	off, err := p.count()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	it, err := p.intType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	if err := p.expect("["); err != nil {
		return nil, err
	}
	d := &Discriminator{Kind: DiscBranch, Offset: off, Int: it}
	for !p.accept("]") {
		if len(d.Cases) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		if err := p.expect("("); err != nil {
			return nil, err
		}
		lo, err := p.integer()
		if err != nil {
			return nil, err
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
		hi, err := p.integer()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		if err := p.expect("=>"); err != nil {
			return nil, err
		}
		child, err := p.discriminator()
		if err != nil {
			return nil, err
		}
		d.Cases = append(d.Cases, DiscriminatorCase{Lo: lo, Hi: hi, Child: *child})
	}
	if err := p.expect(","); err != nil {
		return nil, err
	}
	fb, err := p.discriminator()
	if err != nil {
		return nil, err
	}
	d.Fallback = fb
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return d, nil
}
