package core_test

import (
	"errors"
	"math/big"
	"reflect"
	"strings"
	"testing"

	"minimize/internal/core"
	"minimize/internal/core/build"
)

// optionBool is the core form of Option<bool> with None in the bool niche.
func optionBool() core.Type {
	none := build.Case(2, 0)
	return core.Type{Kind: core.TyEnum, Enum: &core.EnumType{
		Variants: []core.Variant{
			{
				Discriminant: core.IntFromInt64(0),
				Data:         core.TupleTy(nil, 1, 1),
				Tagger:       []core.TagWrite{{Offset: 0, Int: core.U8, Value: none.Value}},
			},
			{
				Discriminant: core.IntFromInt64(1),
				Data:         core.TupleTy([]core.Field{{Offset: 0, Type: build.Bool()}}, 1, 1),
			},
		},
		Discriminator: core.Discriminator{
			Kind:   core.DiscBranch,
			Offset: 0,
			Int:    core.U8,
			Cases: []core.DiscriminatorCase{{
				Lo: none.Value, Hi: none.Value,
				Child: core.Discriminator{Kind: core.DiscKnown, Known: core.IntFromInt64(0)},
			}},
			Fallback: &core.Discriminator{Kind: core.DiscKnown, Known: core.IntFromInt64(1)},
		},
		DiscriminantType: core.Isize,
		Size:             1,
		Align:            1,
	}}
}

func unionU16U8() core.Type {
	return core.Type{Kind: core.TyUnion, Union: &core.UnionType{
		Fields: []core.Field{{Offset: 0, Type: build.U16()}, {Offset: 0, Type: build.U8()}},
		Chunks: []core.Chunk{{Offset: 0, Size: 2}},
		Size:   2,
		Align:  2,
	}}
}

// richProgram touches every statement, terminator, value and place form.
func richProgram() *core.Program {
	pair := build.TupleOf(build.U8(), build.I32())
	opt := optionBool()
	un := unionU16U8()
	arr := build.ArrayOf(build.U8(), 3)
	locals := []core.Type{pair, opt, un, arr, build.RefTo(build.I32()), build.RawPtr(), build.U32(), build.Bool(), build.I64()}

	main := build.Function(build.RetNo, 0, locals, []core.BasicBlock{
		build.Block(build.Goto(1),
			build.StorageLive(0), build.StorageLive(1), build.StorageLive(2), build.StorageLive(3),
			build.StorageLive(4), build.StorageLive(5), build.StorageLive(6), build.StorageLive(7), build.StorageLive(8),
			build.Assign(build.Local(0), build.Tuple(pair, build.ConstInt(core.U8, 7), build.ConstInt(core.I32, -3))),
			build.Assign(build.Local(1), build.Variant(opt, 1, build.Tuple(opt.Enum.Variants[1].Data, build.ConstBool(true)))),
			build.SetDiscriminant(build.Local(1), 0),
			build.Assign(build.Local(2), build.Union(un, 1, build.ConstInt(core.U8, 255))),
			build.Assign(build.Local(3), build.Array(build.U8(), build.ConstInt(core.U8, 1), build.ConstInt(core.U8, 2), build.ConstInt(core.U8, 3))),
			build.Assign(build.Local(4), build.AddrOf(build.Field(build.Local(0), 1), build.RefTo(build.I32()))),
			build.Assign(build.Deref(build.Load(build.Local(4)), build.I32()), build.Neg(build.ConstInt(core.I32, 5))),
			build.Assign(build.Index(build.Local(3), build.ConstInt(core.Usize, 2)), build.IntToInt(core.U8, build.ConstInt(core.I32, 300))),
			build.Assign(build.Local(7), build.BoolXor(build.Not(build.ConstBool(false)), build.Lt(build.ConstInt(core.U8, 1), build.Load(build.Field(build.Local(2), 1))))),
			build.Assign(build.Local(8), build.IntToInt(core.I64, build.Discriminant(build.Local(1)))),
			build.Assign(build.Field(build.Downcast(build.Local(1), 1), 0), build.Move(build.Local(7))),
		),
		build.Block(build.Allocate(build.ConstInt(core.Usize, 8), build.ConstInt(core.Usize, 8), build.Local(5), 2)),
		build.Block(build.Deallocate(build.Load(build.Local(5)), build.ConstInt(core.Usize, 8), build.ConstInt(core.Usize, 8), 3)),
		build.Block(build.Spawn(build.FnPtr(1), build.Load(build.Local(5)), build.RetPlace(build.Local(6)), 4)),
		build.Block(build.Join(build.Load(build.Local(6)), 5)),
		build.Block(build.SwitchInt(build.BoolToInt(core.U8, build.Load(build.Local(7))), []core.SwitchCase{build.Case(0, 6), build.Case(1, 7)}, 8)),
		build.Block(build.If(build.Load(build.Local(7)), 7, 8)),
		build.Block(build.Call(build.FnPtr(2), []core.ValueExpr{build.Add(build.ConstInt(core.I64, 1), build.ConstInt(core.I64, -1))}, build.RetPlace(build.Local(8)), build.Next(8))),
		build.Block(build.Print(9, build.Load(build.Local(8)), build.ConstBool(true))),
		build.Block(build.Exit(), build.StorageDead(8)),
	})
	worker := build.Function(build.RetNo, 1, []core.Type{build.RawPtr()}, []core.BasicBlock{build.Block(build.Return())})
	ident := build.Function(build.RetYes, 1, []core.Type{build.I64(), build.I64()}, []core.BasicBlock{
		build.Block(build.Return(), build.Assign(build.Local(0), build.Load(build.Local(1)))),
	})
	unreachable := build.Function(build.RetNo, 0, nil, []core.BasicBlock{build.Block(build.Unreachable())})
	return build.Program(main, worker, ident, unreachable)
}

func TestRichProgramIsWellFormed(t *testing.T) {
	if err := core.Check(richProgram()); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestDumpParseRoundTrip(t *testing.T) {
	progs := map[string]*core.Program{
		"rich":  richProgram(),
		"small": build.SmallProgram([]core.Type{build.Bool()}, build.StorageLive(0), build.Assign(build.Local(0), build.ConstBool(false))),
		"no_locals": build.Program(build.Function(build.RetNo, 0, nil, []core.BasicBlock{
			build.Block(build.SwitchInt(build.BoolToInt(core.U8, build.ConstBool(false)), []core.SwitchCase{build.Case(0, 1)}, 2)),
			build.Block(build.Exit()),
			build.Block(build.Unreachable()),
		})),
		"extremes": build.SmallProgram([]core.Type{build.U64(), build.I64()},
			build.StorageLive(0), build.StorageLive(1),
			build.Assign(build.Local(0), build.ConstUint(core.U64, ^uint64(0))),
			build.Assign(build.Local(1), build.ConstInt(core.I64, -1<<63)),
		),
	}
	for name, p := range progs {
		t.Run(name, func(t *testing.T) {
			text := core.DumpString(p)
			back, err := core.Parse(text)
			if err != nil {
				t.Fatalf("Parse: %v\n%s", err, text)
			}
			if !reflect.DeepEqual(back, p) {
				t.Fatalf("round trip differs:\n%s\n---\n%s", text, core.DumpString(back))
			}
			if again := core.DumpString(back); again != text {
				t.Fatalf("dump is not stable:\n%s\n---\n%s", text, again)
			}
		})
	}
}

func TestDumpIsReadable(t *testing.T) {
	p := build.SmallProgram([]core.Type{build.U8()}, build.StorageLive(0), build.Assign(build.Local(0), build.BoolToInt(core.U8, build.ConstBool(true))))
	want := strings.Join([]string{
		"program start f0",
		"",
		"fn f0() -> _ start bb0 {",
		"  let _0: u8;",
		"  bb0: {",
		"    storage_live _0;",
		"    _0 = cast(bool_to_int, u8, const(bool true, bool));",
		"    exit;",
		"  }",
		"}",
		"",
	}, "\n")
	if got := core.DumpString(p); got != want {
		t.Fatalf("dump =\n%s\nwant\n%s", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing_header", "fn f0() -> _ start bb0 {}", `expected "program"`},
		{"bad_char", "program start f0 $", "unexpected character"},
		{"out_of_order_block", "program start f0\nfn f0() -> _ start bb0 {\n bb1: { exit; }\n}", "out of order"},
		{"unknown_type", "program start f0\nfn f0() -> _ start bb0 {\n let _0: u7;\n bb0: { exit; }\n}", "unknown type"},
		{"unknown_op", "program start f0\nfn f0() -> _ start bb0 {\n bb0: { if unop(frob, const(bool true, bool)) then bb0 else bb0; }\n}", "unknown unary operator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := core.Parse(tt.src)
			var perr *core.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *core.ParseError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCheckRejectsIllFormedPrograms(t *testing.T) {
	tests := []struct {
		name string
		prog *core.Program
		want string
	}{
		{
			name: "not_on_int",
			prog: build.SmallProgram([]core.Type{build.Bool()}, build.StorageLive(0), build.Assign(build.Local(0), build.Not(build.ConstInt(core.U8, 1)))),
			want: "boolean unary operator",
		},
		{
			name: "bool_to_int_on_int",
			prog: build.SmallProgram([]core.Type{build.U8()}, build.StorageLive(0), build.Assign(build.Local(0), build.BoolToInt(core.U8, build.ConstInt(core.U8, 1)))),
			want: "bool-to-int cast",
		},
		{
			name: "bool_and_on_arrays",
			prog: build.SmallProgram([]core.Type{build.ArrayOf(build.U8(), 3)}, build.StorageLive(0),
				build.Assign(build.Local(0), build.BoolAnd(
					build.Array(build.U8(), build.ConstInt(core.U8, 1), build.ConstInt(core.U8, 2), build.ConstInt(core.U8, 3)),
					build.Array(build.U8(), build.ConstInt(core.U8, 1), build.ConstInt(core.U8, 2), build.ConstInt(core.U8, 3))))),
			want: "boolean operator",
		},
		{
			name: "int_add_mismatched",
			prog: build.SmallProgram([]core.Type{build.I32()}, build.StorageLive(0), build.Assign(build.Local(0), build.Add(build.ConstInt(core.I32, 1), build.ConstInt(core.I64, 1)))),
			want: "mismatched",
		},
		{
			name: "assign_mismatch",
			prog: build.SmallProgram([]core.Type{build.U8()}, build.StorageLive(0), build.Assign(build.Local(0), build.ConstBool(true))),
			want: "assignment",
		},
		{
			name: "constant_out_of_range",
			prog: build.SmallProgram([]core.Type{build.U8()}, build.StorageLive(0), build.Assign(build.Local(0), build.ConstInt(core.U8, 256))),
			want: "out of range",
		},
		{
			name: "dangling_local",
			prog: build.SmallProgram(nil, build.StorageLive(3)),
			want: "missing local _3",
		},
		{
			name: "dangling_block",
			prog: build.Program(build.Function(build.RetNo, 0, nil, []core.BasicBlock{build.Block(build.Goto(4))})),
			want: "bb4 does not exist",
		},
		{
			name: "if_on_int",
			prog: build.Program(build.Function(build.RetNo, 0, nil, []core.BasicBlock{build.Block(build.If(build.ConstInt(core.U8, 1), 0, 0))})),
			want: "if condition",
		},
		{
			name: "switch_arm_out_of_range",
			prog: build.Program(build.Function(build.RetNo, 0, nil, []core.BasicBlock{
				build.Block(build.SwitchInt(build.ConstInt(core.U8, 1), []core.SwitchCase{build.Case(256, 0)}, 0)),
			})),
			want: "out of range for u8",
		},
		{
			name: "call_arity",
			prog: build.Program(
				build.Function(build.RetNo, 0, nil, []core.BasicBlock{build.Block(build.Call(build.FnPtr(1), nil, nil, build.Next(0)))}),
				build.Function(build.RetNo, 1, []core.Type{build.U8()}, []core.BasicBlock{build.Block(build.Return())}),
			),
			want: "taking 1",
		},
		{
			name: "missing_function",
			prog: build.Program(build.Function(build.RetNo, 0, nil, []core.BasicBlock{build.Block(build.Call(build.FnPtr(5), nil, nil, nil))})),
			want: "f5 out of range",
		},
		{
			name: "start_takes_args",
			prog: build.Program(build.Function(build.RetNo, 1, []core.Type{build.U8()}, []core.BasicBlock{build.Block(build.Exit())})),
			want: "start function takes arguments",
		},
		{
			name: "no_functions",
			prog: build.Program(),
			want: "start function f0 does not exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := core.Check(tt.prog)
			var ierr *core.IllFormedError
			if !errors.As(err, &ierr) {
				t.Fatalf("expected *core.IllFormedError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCheckRejectsMalformedTypes(t *testing.T) {
	badAlign := core.TupleTy(nil, 3, 2)
	outOfBounds := core.TupleTy([]core.Field{{Offset: 2, Type: build.U32()}}, 4, 4)
	badEnum := optionBool()
	badEnum.Enum.Discriminator.Fallback = &core.Discriminator{Kind: core.DiscKnown, Known: core.IntFromInt64(9)}
	for name, ty := range map[string]core.Type{"align": badAlign, "bounds": outOfBounds, "discriminator": badEnum} {
		if err := core.CheckType(ty); err == nil {
			t.Errorf("%s: CheckType accepted %s", name, ty)
		}
	}
	if err := core.CheckType(optionBool()); err != nil {
		t.Fatalf("Option<bool>: %v", err)
	}
}

func TestIntTypeArithmetic(t *testing.T) {
	tests := []struct {
		it   core.IntType
		raw  uint64
		want string
	}{
		{core.U8, 0xFF, "255"},
		{core.I8, 0xFF, "-1"},
		{core.I8, 0x80, "-128"},
		{core.I64, 1 << 63, "-9223372036854775808"},
		{core.U64, ^uint64(0), "18446744073709551615"},
		{core.I16, 0x7FFF, "32767"},
	}
	for _, tt := range tests {
		v := tt.it.FromBits(tt.raw)
		if v.String() != tt.want {
			t.Errorf("%s.FromBits(%#x) = %s, want %s", tt.it, tt.raw, v, tt.want)
		}
		if back := tt.it.ToBits(v); back != tt.raw {
			t.Errorf("%s.ToBits(%s) = %#x, want %#x", tt.it, v, back, tt.raw)
		}
		if !tt.it.Contains(v) {
			t.Errorf("%s does not contain %s", tt.it, v)
		}
	}
	if got := core.U8.Wrap(big.NewInt(300)); got != core.IntFromInt64(44) {
		t.Errorf("u8 wrap 300 = %s", got)
	}
	if got := core.I8.Wrap(big.NewInt(200)); got != core.IntFromInt64(-56) {
		t.Errorf("i8 wrap 200 = %s", got)
	}
	if core.I8.Contains(core.IntFromInt64(128)) || core.U8.Contains(core.IntFromInt64(-1)) {
		t.Error("Contains accepted an out-of-range value")
	}
	if v, err := core.ParseInt("-0"); err != nil || v != (core.Int{}) {
		t.Errorf("ParseInt(-0) = %+v, %v", v, err)
	}
}
