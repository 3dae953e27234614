package machine_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"minimize/internal/core"
	"minimize/internal/core/build"
	"minimize/internal/machine"
)

func run(t *testing.T, p *core.Program) (machine.TerminationInfo, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	info := machine.Run(context.Background(), p, machine.Options{Stdout: &out, Stderr: &errOut})
	return info, out.String()
}

// blocks is a program made of one argument-less function without locals.
func blocks(bbs ...core.BasicBlock) *core.Program {
	return build.Program(build.Function(build.RetNo, 0, nil, bbs))
}

func expectKind(t *testing.T, info machine.TerminationInfo, want machine.TerminationKind) {
	t.Helper()
	if info.Kind != want {
		t.Fatalf("outcome = %v, want %v", info, want)
	}
}

func TestBoolOperations(t *testing.T) {
	arr := build.Array(build.U8(), build.ConstInt(core.U8, 0), build.ConstInt(core.U8, 0), build.ConstInt(core.U8, 0))
	tests := []struct {
		name string
		prog *core.Program
		want machine.TerminationKind
	}{
		{
			name: "false_to_int",
			prog: blocks(
				build.Block(build.SwitchInt(build.BoolToInt(core.U8, build.ConstBool(false)), []core.SwitchCase{build.Case(0, 1)}, 2)),
				build.Block(build.Exit()),
				build.Block(build.Unreachable()),
			),
			want: machine.MachineStop,
		},
		{
			name: "true_to_int",
			prog: blocks(
				build.Block(build.SwitchInt(build.BoolToInt(core.U8, build.ConstBool(true)), []core.SwitchCase{build.Case(1, 1)}, 2)),
				build.Block(build.Exit()),
				build.Block(build.Unreachable()),
			),
			want: machine.MachineStop,
		},
		{
			name: "not_works_both_ways",
			prog: blocks(
				build.Block(build.If(build.Not(build.ConstBool(false)), 1, 3)),
				build.Block(build.If(build.Not(build.ConstBool(true)), 3, 2)),
				build.Block(build.Exit()),
				build.Block(build.Unreachable()),
			),
			want: machine.MachineStop,
		},
		{
			name: "not_requires_bool",
			prog: build.SmallProgram([]core.Type{build.Bool()},
				build.StorageLive(0), build.Assign(build.Local(0), build.Not(build.ConstInt(core.U8, 0))), build.StorageDead(0)),
			want: machine.IllFormed,
		},
		{
			name: "bool_to_int_requires_bool",
			prog: build.SmallProgram([]core.Type{build.U8()},
				build.StorageLive(0), build.Assign(build.Local(0), build.BoolToInt(core.U8, build.ConstInt(core.U8, 0))), build.StorageDead(0)),
			want: machine.IllFormed,
		},
		{
			name: "bit_and_bool",
			prog: blocks(
				build.Block(build.If(build.BoolAnd(build.ConstBool(false), build.ConstBool(false)), 5, 1)),
				build.Block(build.If(build.BoolAnd(build.ConstBool(false), build.ConstBool(true)), 5, 2)),
				build.Block(build.If(build.BoolAnd(build.ConstBool(true), build.ConstBool(false)), 5, 3)),
				build.Block(build.If(build.BoolAnd(build.ConstBool(true), build.ConstBool(true)), 4, 5)),
				build.Block(build.Exit()),
				build.Block(build.Unreachable()),
			),
			want: machine.MachineStop,
		},
		{
			name: "bit_and_requires_bool",
			prog: build.SmallProgram([]core.Type{build.Bool()},
				build.StorageLive(0), build.Assign(build.Local(0), build.BoolAnd(arr, arr)), build.StorageDead(0)),
			want: machine.IllFormed,
		},
		{
			name: "bit_and_no_int_mixing",
			prog: build.SmallProgram([]core.Type{build.Bool()},
				build.StorageLive(0), build.Assign(build.Local(0), build.BoolAnd(build.ConstInt(core.I32, 1), build.ConstInt(core.I32, 0))), build.StorageDead(0)),
			want: machine.IllFormed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, _ := run(t, tt.prog)
			expectKind(t, info, tt.want)
		})
	}
}

func TestIllFormedCarriesCheckerMessage(t *testing.T) {
	p := build.SmallProgram([]core.Type{build.Bool()},
		build.StorageLive(0), build.Assign(build.Local(0), build.BoolAnd(build.ConstInt(core.I32, 1), build.ConstInt(core.I32, 0))))
	info, _ := run(t, p)
	expectKind(t, info, machine.IllFormed)
	if !strings.Contains(info.Detail, "boolean operator applied to") {
		t.Fatalf("detail = %q", info.Detail)
	}
}

func TestIntegerArithmetic(t *testing.T) {
	tests := []struct {
		name string
		expr core.ValueExpr
		want string
	}{
		{"add_wraps", build.Add(build.ConstInt(core.U8, 250), build.ConstInt(core.U8, 10)), "4"},
		{"sub_wraps", build.Sub(build.ConstInt(core.I8, -128), build.ConstInt(core.I8, 1)), "127"},
		{"div_truncates", build.Div(build.ConstInt(core.I32, -7), build.ConstInt(core.I32, 2)), "-3"},
		{"rem_sign_of_dividend", build.Rem(build.ConstInt(core.I32, -7), build.ConstInt(core.I32, 2)), "-1"},
		{"shl_masks_amount", build.Shl(build.ConstInt(core.U8, 1), build.ConstInt(core.U32, 9)), "2"},
		{"shr_is_arithmetic", build.Shr(build.ConstInt(core.I8, -8), build.ConstInt(core.U8, 1)), "-4"},
		{"xor", build.BitXor(build.ConstInt(core.U8, 0xF0), build.ConstInt(core.U8, 0xFF)), "15"},
		{"cast_wraps", build.IntToInt(core.U8, build.ConstInt(core.I32, -1)), "255"},
		{"neg_min", build.Neg(build.ConstInt(core.I8, -128)), "-128"},
		{"bitnot", build.BitNot(build.ConstInt(core.U8, 0)), "255"},
		{"lt_signed", build.Lt(build.ConstInt(core.I8, -1), build.ConstInt(core.I8, 0)), "true"},
		{"ne", build.Ne(build.ConstInt(core.U16, 3), build.ConstInt(core.U16, 3)), "false"},
		{"u64_max", build.Add(build.ConstUint(core.U64, 1<<64-1), build.ConstInt(core.U64, 0)), "18446744073709551615"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, out := run(t, blocks(build.Block(build.Print(1, tt.expr)), build.Block(build.Exit())))
			expectKind(t, info, machine.MachineStop)
			if got := strings.TrimSpace(out); got != tt.want {
				t.Fatalf("printed %q, want %q", got, tt.want)
			}
		})
	}
}

func TestArithmeticUb(t *testing.T) {
	tests := []struct {
		name string
		expr core.ValueExpr
		want string
	}{
		{"unchecked_add", build.AddUnchecked(build.ConstInt(core.U8, 255), build.ConstInt(core.U8, 1)), "overflow"},
		{"unchecked_mul", build.MulUnchecked(build.ConstInt(core.I16, 300), build.ConstInt(core.I16, 300)), "overflow"},
		{"div_by_zero", build.Div(build.ConstInt(core.U8, 1), build.ConstInt(core.U8, 0)), "division by zero"},
		{"rem_by_zero", build.Rem(build.ConstInt(core.I64, 1), build.ConstInt(core.I64, 0)), "division by zero"},
		{"div_overflow", build.Div(build.ConstInt(core.I8, -128), build.ConstInt(core.I8, -1)), "overflow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, _ := run(t, blocks(build.Block(build.Print(1, tt.expr)), build.Block(build.Exit())))
			expectKind(t, info, machine.Ub)
			if !strings.Contains(info.Detail, tt.want) {
				t.Fatalf("detail = %q, want it to mention %q", info.Detail, tt.want)
			}
		})
	}
}

func TestUbOutcomes(t *testing.T) {
	u8s := []core.Type{build.U8(), build.U8()}
	tests := []struct {
		name string
		prog *core.Program
		want string
	}{
		{
			name: "unreachable",
			prog: blocks(build.Block(build.Unreachable())),
			want: "unreachable",
		},
		{
			name: "dead_local_write",
			prog: build.SmallProgram(u8s, build.Assign(build.Local(0), build.ConstInt(core.U8, 1))),
			want: "dead local _0",
		},
		{
			name: "dead_local_after_storage_dead",
			prog: build.SmallProgram(u8s,
				build.StorageLive(0), build.Assign(build.Local(0), build.ConstInt(core.U8, 1)), build.StorageDead(0),
				build.StorageLive(1), build.Assign(build.Local(1), build.Load(build.Local(0)))),
			want: "dead local _0",
		},
		{
			name: "uninit_read",
			prog: build.SmallProgram(u8s, build.StorageLive(0), build.StorageLive(1), build.Assign(build.Local(1), build.Load(build.Local(0)))),
			want: "uninitialized",
		},
		{
			name: "read_after_move",
			prog: build.SmallProgram(u8s,
				build.StorageLive(0), build.StorageLive(1), build.Assign(build.Local(0), build.ConstInt(core.U8, 1)),
				build.Assign(build.Local(1), build.Move(build.Local(0))), build.Assign(build.Local(1), build.Load(build.Local(0)))),
			want: "uninitialized",
		},
		{
			name: "index_out_of_bounds",
			prog: build.SmallProgram([]core.Type{build.ArrayOf(build.U8(), 2)},
				build.StorageLive(0),
				build.Assign(build.Local(0), build.Array(build.U8(), build.ConstInt(core.U8, 1), build.ConstInt(core.U8, 2))),
				build.Assign(build.Index(build.Local(0), build.ConstInt(core.Usize, 2)), build.ConstInt(core.U8, 0))),
			want: "out of bounds",
		},
		{
			name: "uninit_discriminant",
			prog: build.SmallProgram([]core.Type{optionBool(), build.Usize()},
				build.StorageLive(0), build.StorageLive(1),
				build.Assign(build.Local(1), build.IntToInt(core.Usize, build.Discriminant(build.Local(0))))),
			want: "invalid discriminant",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, _ := run(t, tt.prog)
			expectKind(t, info, machine.Ub)
			if !strings.Contains(info.Detail, tt.want) {
				t.Fatalf("detail = %q, want it to mention %q", info.Detail, tt.want)
			}
		})
	}
}

func TestReturnWithoutSuccessorIsUb(t *testing.T) {
	p := build.Program(
		build.Function(build.RetNo, 0, nil, []core.BasicBlock{build.Block(build.Call(build.FnPtr(1), nil, nil, nil))}),
		build.Function(build.RetNo, 0, nil, []core.BasicBlock{build.Block(build.Return())}),
	)
	info, _ := run(t, p)
	expectKind(t, info, machine.Ub)
	if !strings.Contains(info.Detail, "without a return block") {
		t.Fatalf("detail = %q", info.Detail)
	}
	ubErr, ok := info.Err.(*machine.UbError)
	if !ok {
		t.Fatalf("Err = %T, want *machine.UbError", info.Err)
	}
	if ubErr.Code != machine.UbBadReturn || len(ubErr.Backtrace) != 1 {
		t.Fatalf("code %v, backtrace %v", ubErr.Code, ubErr.Backtrace)
	}
}

func TestReturnFromStartStops(t *testing.T) {
	info, _ := run(t, blocks(build.Block(build.Return())))
	expectKind(t, info, machine.MachineStop)
}

func TestCallPassesArgumentsAndResult(t *testing.T) {
	ident := build.Function(build.RetYes, 1, []core.Type{build.I64(), build.I64()}, []core.BasicBlock{
		build.Block(build.Return(), build.Assign(build.Local(0), build.Load(build.Local(1)))),
	})
	main := build.Function(build.RetNo, 0, []core.Type{build.I64()}, []core.BasicBlock{
		build.Block(build.Call(build.FnPtr(1), []core.ValueExpr{build.ConstInt(core.I64, 42)}, build.RetPlace(build.Local(0)), build.Next(1)), build.StorageLive(0)),
		build.Block(build.Print(2, build.Load(build.Local(0)))),
		build.Block(build.Exit()),
	})
	info, out := run(t, build.Program(main, ident))
	expectKind(t, info, machine.MachineStop)
	if out != "42\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestHeapMemory(t *testing.T) {
	four := build.ConstInt(core.Usize, 4)
	ptr := build.Load(build.Local(0))
	t.Run("leak", func(t *testing.T) {
		p := build.Program(build.Function(build.RetNo, 0, []core.Type{build.RawPtr()}, []core.BasicBlock{
			build.Block(build.Allocate(four, four, build.Local(0), 1), build.StorageLive(0)),
			build.Block(build.Exit()),
		}))
		info, _ := run(t, p)
		expectKind(t, info, machine.MemoryLeak)
	})
	t.Run("store_load_free", func(t *testing.T) {
		p := build.Program(build.Function(build.RetNo, 0, []core.Type{build.RawPtr()}, []core.BasicBlock{
			build.Block(build.Allocate(four, four, build.Local(0), 1), build.StorageLive(0)),
			build.Block(build.Print(2, build.Load(build.Deref(ptr, build.U32()))), build.Assign(build.Deref(ptr, build.U32()), build.ConstInt(core.U32, 77))),
			build.Block(build.Deallocate(ptr, four, four, 3)),
			build.Block(build.Exit()),
		}))
		info, out := run(t, p)
		expectKind(t, info, machine.MachineStop)
		if out != "77\n" {
			t.Fatalf("stdout = %q", out)
		}
	})
	t.Run("use_after_free", func(t *testing.T) {
		p := build.Program(build.Function(build.RetNo, 0, []core.Type{build.RawPtr()}, []core.BasicBlock{
			build.Block(build.Allocate(four, four, build.Local(0), 1), build.StorageLive(0)),
			build.Block(build.Deallocate(ptr, four, four, 2)),
			build.Block(build.Exit(), build.Assign(build.Deref(ptr, build.U32()), build.ConstInt(core.U32, 1))),
		}))
		info, _ := run(t, p)
		expectKind(t, info, machine.Ub)
		if !strings.Contains(info.Detail, "freed") {
			t.Fatalf("detail = %q", info.Detail)
		}
	})
	t.Run("double_free", func(t *testing.T) {
		p := build.Program(build.Function(build.RetNo, 0, []core.Type{build.RawPtr()}, []core.BasicBlock{
			build.Block(build.Allocate(four, four, build.Local(0), 1), build.StorageLive(0)),
			build.Block(build.Deallocate(ptr, four, four, 2)),
			build.Block(build.Deallocate(ptr, four, four, 3)),
			build.Block(build.Exit()),
		}))
		info, _ := run(t, p)
		expectKind(t, info, machine.Ub)
		if !strings.Contains(info.Detail, "double free") {
			t.Fatalf("detail = %q", info.Detail)
		}
	})
	t.Run("wrong_layout", func(t *testing.T) {
		p := build.Program(build.Function(build.RetNo, 0, []core.Type{build.RawPtr()}, []core.BasicBlock{
			build.Block(build.Allocate(four, four, build.Local(0), 1), build.StorageLive(0)),
			build.Block(build.Deallocate(ptr, build.ConstInt(core.Usize, 8), four, 2)),
			build.Block(build.Exit()),
		}))
		info, _ := run(t, p)
		expectKind(t, info, machine.Ub)
	})
}

func TestThreads(t *testing.T) {
	t.Run("self_join_deadlocks", func(t *testing.T) {
		info, _ := run(t, blocks(build.Block(build.Join(build.ConstInt(core.U32, 0), 1)), build.Block(build.Exit())))
		expectKind(t, info, machine.Deadlock)
	})
	t.Run("spawn_and_join", func(t *testing.T) {
		worker := build.Function(build.RetNo, 1, []core.Type{build.RawPtr()}, []core.BasicBlock{
			build.Block(build.Print(1, build.ConstInt(core.U8, 7))),
			build.Block(build.Return()),
		})
		main := build.Function(build.RetNo, 0, []core.Type{build.U32()}, []core.BasicBlock{
			build.Block(build.Spawn(build.FnPtr(1), build.AddrOf(build.Local(0), build.RawPtr()), build.RetPlace(build.Local(0)), 1), build.StorageLive(0)),
			build.Block(build.Join(build.Load(build.Local(0)), 2)),
			build.Block(build.Print(3, build.ConstInt(core.U8, 9))),
			build.Block(build.Exit()),
		})
		info, out := run(t, build.Program(main, worker))
		expectKind(t, info, machine.MachineStop)
		if out != "7\n9\n" {
			t.Fatalf("stdout = %q", out)
		}
	})
	t.Run("join_unknown_thread", func(t *testing.T) {
		info, _ := run(t, blocks(build.Block(build.Join(build.ConstInt(core.U32, 3), 1)), build.Block(build.Exit())))
		expectKind(t, info, machine.Ub)
	})
}

func TestEnumValues(t *testing.T) {
	opt := optionBool()
	some := build.TupleOf(build.Bool())
	none := core.TupleTy(nil, 1, 1)
	discr := build.IntToInt(core.U8, build.Discriminant(build.Local(0)))
	p := build.Program(build.Function(build.RetNo, 0, []core.Type{opt}, []core.BasicBlock{
		build.Block(build.Print(1, discr),
			build.StorageLive(0), build.Assign(build.Local(0), build.Variant(opt, 0, build.Tuple(none)))),
		build.Block(build.Print(2, discr, build.Load(build.Field(build.Downcast(build.Local(0), 1), 0))),
			build.Assign(build.Local(0), build.Variant(opt, 1, build.Tuple(some, build.ConstBool(true))))),
		build.Block(build.Print(3, discr),
			build.SetDiscriminant(build.Local(0), 0)),
		build.Block(build.Exit()),
	}))
	info, out := run(t, p)
	expectKind(t, info, machine.MachineStop)
	if out != "0\n1 true\n0\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestStepLimit(t *testing.T) {
	var out bytes.Buffer
	info := machine.Run(context.Background(), blocks(build.Block(build.Goto(0))), machine.Options{Stdout: &out, StepLimit: 100})
	expectKind(t, info, machine.Ub)
	if !strings.Contains(info.Detail, "step limit") {
		t.Fatalf("detail = %q", info.Detail)
	}
}

// optionBool is Option<bool> with None stored as the byte 2.
func optionBool() core.Type {
	two := core.IntFromInt64(2)
	return core.Type{Kind: core.TyEnum, Enum: &core.EnumType{
		Variants: []core.Variant{
			{
				Discriminant: core.IntFromInt64(0),
				Data:         core.TupleTy(nil, 1, 1),
				Tagger:       []core.TagWrite{{Offset: 0, Int: core.U8, Value: two}},
			},
			{
				Discriminant: core.IntFromInt64(1),
				Data:         build.TupleOf(build.Bool()),
			},
		},
		Discriminator: core.Discriminator{
			Kind: core.DiscBranch,
			Int:  core.U8,
			Cases: []core.DiscriminatorCase{{
				Lo: two, Hi: two,
				Child: core.Discriminator{Kind: core.DiscKnown, Known: core.IntFromInt64(0)},
			}},
			Fallback: &core.Discriminator{Kind: core.DiscKnown, Known: core.IntFromInt64(1)},
		},
		DiscriminantType: core.Isize,
		Size:             1,
		Align:            1,
	}}
}
