package lower_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"minimize/internal/core"
	"minimize/internal/layout"
	"minimize/internal/lower"
	"minimize/internal/machine"
	"minimize/internal/mir"
	"minimize/internal/testkit"
	"minimize/internal/types"
)

// fixture builds crates whose function 0 is main and function 1 is the
// print intrinsic.
type fixture struct {
	in      *types.Interner
	b       types.Builtins
	printTy types.TypeID
}

func newFixture() *fixture {
	in := types.NewInterner()
	return &fixture{in: in, b: in.Builtins(), printTy: in.Intern(types.MakeFnDef(1))}
}

func (fx *fixture) crate(main *mir.Body, more ...mir.FuncDecl) *mir.Crate {
	funcs := []mir.FuncDecl{
		{Name: "main", Body: main},
		{Name: "print", Kind: mir.FuncIntrinsic, Intrinsic: "print"},
	}
	return &mir.Crate{Types: fx.in, Entry: "main", Funcs: append(funcs, more...)}
}

// print calls the print intrinsic on arg and continues at next. Local 0 of
// main is the unit return place.
func (fx *fixture) print(arg mir.Operand, next mir.BlockID) mir.Terminator {
	return mir.Call(mir.ConstOperand(mir.FnRef(fx.printTy, 1)), []mir.Operand{arg}, mir.LocalPlace(0), next)
}

func (fx *fixture) option(payload types.TypeID) types.TypeID {
	id := fx.in.RegisterEnum("Option")
	fx.in.SetVariants(id, []types.VariantInfo{
		{Name: "None", Discr: 0},
		{Name: "Some", Discr: 1, Fields: []types.FieldInfo{{Name: "0", Type: payload}}},
	})
	return id
}

func locals(tys ...types.TypeID) []mir.Local {
	out := make([]mir.Local, len(tys))
	for i, ty := range tys {
		out[i] = mir.Local{Type: ty}
	}
	return out
}

func lowerCrate(t *testing.T, c *mir.Crate) *core.Program {
	t.Helper()
	prog, err := lower.Program(context.Background(), c, lower.Options{})
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if err := testkit.CheckProgramInvariants(prog); err != nil {
		t.Fatalf("lowered program: %v", err)
	}
	return prog
}

func runCrate(t *testing.T, c *mir.Crate) (machine.TerminationInfo, string) {
	t.Helper()
	prog := lowerCrate(t, c)
	var out bytes.Buffer
	info := machine.Run(context.Background(), prog, machine.Options{Stdout: &out, Stderr: &out})
	return info, out.String()
}

func (fx *fixture) arithmetic() *mir.Crate {
	u32 := fx.b.U32
	return fx.crate(&mir.Body{
		Locals: locals(fx.b.Unit, u32, u32),
		Blocks: []mir.Block{
			mir.NewBlock(fx.print(mir.Copy(mir.LocalPlace(2)), 1),
				mir.Assign(mir.LocalPlace(1), mir.Use(mir.ConstOperand(mir.Scalar(u32, 40)))),
				mir.Assign(mir.LocalPlace(2), mir.Binary(mir.BinAdd,
					mir.Copy(mir.LocalPlace(1)), mir.ConstOperand(mir.Scalar(u32, 2)))),
			),
			mir.NewBlock(mir.Return()),
		},
	})
}

func TestProgramRunsArithmetic(t *testing.T) {
	info, out := runCrate(t, newFixture().arithmetic())
	if info.Kind != machine.MachineStop {
		t.Fatalf("outcome = %v", info)
	}
	if out != "42\n" {
		t.Fatalf("output = %q, want %q", out, "42\n")
	}
}

func TestStorageProloguePrecedesBody(t *testing.T) {
	prog := lowerCrate(t, newFixture().arithmetic())
	fn := prog.Functions[prog.Start]
	if len(fn.Blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(fn.Blocks))
	}
	entry := fn.Blocks[fn.Start]
	if len(entry.Statements) != 2 {
		t.Fatalf("prologue statements = %d, want 2", len(entry.Statements))
	}
	for i, s := range entry.Statements {
		if s.Kind != core.StmtStorageLive || s.Local != core.LocalName(i+1) {
			t.Fatalf("prologue statement %d = %+v", i, s)
		}
	}
	if entry.Terminator.Kind != core.TermGoto || entry.Terminator.Goto != 1 {
		t.Fatalf("prologue terminator = %+v", entry.Terminator)
	}
}

func TestMarkedLocalsNeedNoPrologue(t *testing.T) {
	fx := newFixture()
	c := fx.crate(&mir.Body{
		Locals: locals(fx.b.Unit, fx.b.U8),
		Blocks: []mir.Block{
			mir.NewBlock(mir.Return(),
				mir.StorageLive(1),
				mir.Assign(mir.LocalPlace(1), mir.Use(mir.ConstOperand(mir.Scalar(fx.b.U8, 1)))),
				mir.StorageDead(1),
			),
		},
	})
	prog := lowerCrate(t, c)
	if n := len(prog.Functions[prog.Start].Blocks); n != 1 {
		t.Fatalf("blocks = %d, want 1", n)
	}
}

func TestCallsPassArgumentsAndResults(t *testing.T) {
	fx := newFixture()
	u32 := fx.b.U32
	double := mir.FuncDecl{Name: "double", Body: &mir.Body{
		Locals:   locals(u32, u32),
		ArgCount: 1,
		Blocks: []mir.Block{
			mir.NewBlock(mir.Return(), mir.Assign(mir.LocalPlace(0),
				mir.Binary(mir.BinMul, mir.Copy(mir.LocalPlace(1)), mir.ConstOperand(mir.Scalar(u32, 2))))),
		},
	}}
	doubleTy := fx.in.Intern(types.MakeFnDef(2))
	c := fx.crate(&mir.Body{
		Locals: locals(fx.b.Unit, u32),
		Blocks: []mir.Block{
			mir.NewBlock(mir.Call(mir.ConstOperand(mir.FnRef(doubleTy, 2)),
				[]mir.Operand{mir.ConstOperand(mir.Scalar(u32, 21))}, mir.LocalPlace(1), 1)),
			mir.NewBlock(fx.print(mir.Copy(mir.LocalPlace(1)), 2)),
			mir.NewBlock(mir.Return()),
		},
	}, double)

	prog := lowerCrate(t, c)
	if len(prog.Functions) != 2 {
		t.Fatalf("functions = %d, want main and double", len(prog.Functions))
	}
	info, out := runCrate(t, c)
	if info.Kind != machine.MachineStop || out != "42\n" {
		t.Fatalf("outcome = %v, output = %q", info, out)
	}
}

func TestUnreachableFunctionsAreSkipped(t *testing.T) {
	fx := newFixture()
	unused := mir.FuncDecl{Name: "unused", Body: &mir.Body{
		Locals: locals(fx.in.Intern(types.MakeInt(types.Width128))),
		Blocks: []mir.Block{mir.NewBlock(mir.Return())},
	}}
	prog := lowerCrate(t, fx.crate(&mir.Body{
		Locals: locals(fx.b.Unit),
		Blocks: []mir.Block{mir.NewBlock(mir.Return())},
	}, unused))
	if len(prog.Functions) != 1 {
		t.Fatalf("functions = %d, want 1", len(prog.Functions))
	}
}

func TestEnumDiscriminantsSurviveEncoding(t *testing.T) {
	tests := []struct {
		name    string
		enum    func(fx *fixture) types.TypeID
		variant int
		fields  func(fx *fixture) []mir.Operand
		want    string
	}{
		{
			name:    "option_bool_none",
			enum:    func(fx *fixture) types.TypeID { return fx.option(fx.b.Bool) },
			variant: 0,
			want:    "0\n",
		},
		{
			name:    "option_bool_some",
			enum:    func(fx *fixture) types.TypeID { return fx.option(fx.b.Bool) },
			variant: 1,
			fields: func(fx *fixture) []mir.Operand {
				return []mir.Operand{mir.ConstOperand(mir.Scalar(fx.b.Bool, 1))}
			},
			want: "1\n",
		},
		{
			name: "direct_tag",
			enum: func(fx *fixture) types.TypeID {
				id := fx.in.RegisterEnum("E")
				fx.in.SetVariants(id, []types.VariantInfo{
					{Name: "A", Discr: 0, Fields: []types.FieldInfo{{Name: "0", Type: fx.b.U32}}},
					{Name: "B", Discr: 1, Fields: []types.FieldInfo{{Name: "0", Type: fx.b.U8}}},
					{Name: "C", Discr: 300},
				})
				return id
			},
			variant: 2,
			want:    "300\n",
		},
		{
			name: "direct_tag_with_data",
			enum: func(fx *fixture) types.TypeID {
				id := fx.in.RegisterEnum("E")
				fx.in.SetVariants(id, []types.VariantInfo{
					{Name: "A", Discr: -1, Fields: []types.FieldInfo{{Name: "0", Type: fx.b.U32}}},
					{Name: "B", Discr: 5, Fields: []types.FieldInfo{{Name: "0", Type: fx.b.U8}}},
				})
				return id
			},
			variant: 0,
			fields: func(fx *fixture) []mir.Operand {
				return []mir.Operand{mir.ConstOperand(mir.Scalar(fx.b.U32, 9))}
			},
			want: "-1\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			en := tt.enum(fx)
			var ops []mir.Operand
			if tt.fields != nil {
				ops = tt.fields(fx)
			}
			c := fx.crate(&mir.Body{
				Locals: locals(fx.b.Unit, en, fx.b.I64),
				Blocks: []mir.Block{
					mir.NewBlock(fx.print(mir.Copy(mir.LocalPlace(2)), 1),
						mir.Assign(mir.LocalPlace(1), mir.Aggregate(mir.AggAdt, en, tt.variant, ops...)),
						mir.Assign(mir.LocalPlace(2), mir.Discriminant(mir.LocalPlace(1))),
					),
					mir.NewBlock(mir.Return()),
				},
			})
			info, out := runCrate(t, c)
			if info.Kind != machine.MachineStop {
				t.Fatalf("outcome = %v", info)
			}
			if out != tt.want {
				t.Fatalf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestOptionRefReadsThroughNicheVariant(t *testing.T) {
	fx := newFixture()
	u32 := fx.b.U32
	ref := fx.in.Intern(types.MakeRef(u32, false))
	opt := fx.option(ref)

	ty, err := lower.NewTypeCache(fx.in, layout.New(layout.X86_64Linux(), fx.in)).Translate(opt)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if ty.Kind != core.TyEnum || ty.Size() != 8 {
		t.Fatalf("Option<&u32> = %s, want an 8-byte enum", ty)
	}

	payload := mir.LocalPlace(2).Downcast(1).Field(0).Deref()
	c := fx.crate(&mir.Body{
		Locals: locals(fx.b.Unit, u32, opt, fx.b.Isize, ref, u32),
		Blocks: []mir.Block{
			mir.NewBlock(mir.SwitchInt(mir.Copy(mir.LocalPlace(3)), []mir.SwitchTarget{{Value: 1, Target: 1}}, 3),
				mir.Assign(mir.LocalPlace(1), mir.Use(mir.ConstOperand(mir.Scalar(u32, 7)))),
				mir.Assign(mir.LocalPlace(4), mir.Ref(mir.LocalPlace(1), false)),
				mir.Assign(mir.LocalPlace(2), mir.Aggregate(mir.AggAdt, opt, 1, mir.Copy(mir.LocalPlace(4)))),
				mir.Assign(mir.LocalPlace(3), mir.Discriminant(mir.LocalPlace(2))),
			),
			mir.NewBlock(fx.print(mir.Copy(mir.LocalPlace(5)), 2),
				mir.Assign(mir.LocalPlace(5), mir.Use(mir.Copy(payload)))),
			mir.NewBlock(mir.Return()),
			mir.NewBlock(mir.Unreachable()),
		},
	})
	info, out := runCrate(t, c)
	if info.Kind != machine.MachineStop || out != "7\n" {
		t.Fatalf("outcome = %v, output = %q", info, out)
	}
}

func TestTranslateTypes(t *testing.T) {
	tests := []struct {
		name  string
		ty    func(fx *fixture) types.TypeID
		kind  core.TypeKind
		size  int
		align int
	}{
		{
			name: "char_is_u32",
			ty:   func(fx *fixture) types.TypeID { return fx.b.Char },
			kind: core.TyInt, size: 4, align: 4,
		},
		{
			name: "unit_is_empty_tuple",
			ty:   func(fx *fixture) types.TypeID { return fx.b.Unit },
			kind: core.TyTuple, size: 0, align: 1,
		},
		{
			name: "struct_with_padding",
			ty: func(fx *fixture) types.TypeID {
				s := fx.in.RegisterStruct("S")
				fx.in.SetFields(s, []types.FieldInfo{{Name: "a", Type: fx.b.U8}, {Name: "b", Type: fx.b.U32}})
				return s
			},
			kind: core.TyTuple, size: 8, align: 4,
		},
		{
			name: "union",
			ty: func(fx *fixture) types.TypeID {
				u := fx.in.RegisterUnion("U")
				fx.in.SetFields(u, []types.FieldInfo{{Name: "a", Type: fx.b.U8}, {Name: "b", Type: fx.b.U32}})
				return u
			},
			kind: core.TyUnion, size: 4, align: 4,
		},
		{
			name: "option_bool",
			ty:   func(fx *fixture) types.TypeID { return fx.option(fx.b.Bool) },
			kind: core.TyEnum, size: 1, align: 1,
		},
		{
			name: "recursive_through_box",
			ty: func(fx *fixture) types.TypeID {
				s := fx.in.RegisterStruct("List")
				next := fx.option(fx.in.Intern(types.MakeBox(s)))
				fx.in.SetFields(s, []types.FieldInfo{{Name: "v", Type: fx.b.U64}, {Name: "next", Type: next}})
				return s
			},
			kind: core.TyTuple, size: 16, align: 8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			cache := lower.NewTypeCache(fx.in, layout.New(layout.X86_64Linux(), fx.in))
			ty, err := cache.Translate(tt.ty(fx))
			if err != nil {
				t.Fatalf("translate: %v", err)
			}
			if ty.Kind != tt.kind || ty.Size() != tt.size || ty.Align() != tt.align {
				t.Fatalf("got %s (size %d, align %d)", ty, ty.Size(), ty.Align())
			}
		})
	}
}

func TestUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name string
		body func(fx *fixture) *mir.Body
		want string
	}{
		{
			name: "i128_local",
			body: func(fx *fixture) *mir.Body {
				return &mir.Body{
					Locals: locals(fx.b.Unit, fx.in.Intern(types.MakeInt(types.Width128))),
					Blocks: []mir.Block{mir.NewBlock(mir.Return())},
				}
			},
			want: "128-bit integer",
		},
		{
			name: "never_local",
			body: func(fx *fixture) *mir.Body {
				return &mir.Body{
					Locals: locals(fx.b.Unit, fx.b.Never),
					Blocks: []mir.Block{mir.NewBlock(mir.Return())},
				}
			},
			want: "never type",
		},
		{
			name: "call_through_pointer",
			body: func(fx *fixture) *mir.Body {
				return &mir.Body{
					Locals: locals(fx.b.Unit, fx.in.Intern(types.MakePtr(fx.b.U8, false))),
					Blocks: []mir.Block{
						mir.NewBlock(mir.Call(mir.Copy(mir.LocalPlace(1)), nil, mir.LocalPlace(0), 1)),
						mir.NewBlock(mir.Return()),
					},
				}
			},
			want: "call through a function pointer",
		},
		{
			name: "dst_tail_pointer",
			body: func(fx *fixture) *mir.Body {
				s := fx.in.RegisterStruct("S")
				fx.in.SetFields(s, []types.FieldInfo{{Name: "a", Type: fx.b.U8}, {Name: "tail", Type: fx.in.Intern(types.Type{Kind: types.KindStr})}})
				return &mir.Body{
					Locals: locals(fx.b.Unit, fx.in.Intern(types.MakeRef(s, false))),
					Blocks: []mir.Block{mir.NewBlock(mir.Return())},
				}
			},
			want: "wide pointer",
		},
		{
			name: "dst_tail_local",
			body: func(fx *fixture) *mir.Body {
				s := fx.in.RegisterStruct("S")
				fx.in.SetFields(s, []types.FieldInfo{{Name: "a", Type: fx.b.U8}, {Name: "tail", Type: fx.in.Intern(types.Type{Kind: types.KindStr})}})
				return &mir.Body{
					Locals: locals(fx.b.Unit, s),
					Blocks: []mir.Block{mir.NewBlock(mir.Return())},
				}
			},
			want: "unsized type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			_, err := lower.Program(context.Background(), fx.crate(tt.body(fx)), lower.Options{})
			var u *lower.UnsupportedError
			if !errors.As(err, &u) {
				t.Fatalf("err = %v, want *UnsupportedError", err)
			}
			if u.Func != "main" || !strings.Contains(u.What, tt.want) {
				t.Fatalf("err = %v, want %q in main", err, tt.want)
			}
		})
	}
}

func TestIllFormedPrograms(t *testing.T) {
	tests := []struct {
		name  string
		crate func(fx *fixture) *mir.Crate
	}{
		{
			name: "bool_not_on_integer",
			crate: func(fx *fixture) *mir.Crate {
				return fx.crate(&mir.Body{
					Locals: locals(fx.b.Unit, fx.b.Bool),
					Blocks: []mir.Block{mir.NewBlock(mir.Return(),
						mir.Assign(mir.LocalPlace(1), mir.Unary(mir.UnNot, mir.ConstOperand(mir.Scalar(fx.b.U8, 0))))),
					},
				})
			},
		},
		{
			name: "dangling_block",
			crate: func(fx *fixture) *mir.Crate {
				return fx.crate(&mir.Body{
					Locals: locals(fx.b.Unit),
					Blocks: []mir.Block{mir.NewBlock(mir.Goto(4))},
				})
			},
		},
		{
			name: "constant_too_wide",
			crate: func(fx *fixture) *mir.Crate {
				return fx.crate(&mir.Body{
					Locals: locals(fx.b.Unit, fx.b.U8),
					Blocks: []mir.Block{mir.NewBlock(mir.Return(),
						mir.Assign(mir.LocalPlace(1), mir.Use(mir.ConstOperand(mir.Scalar(fx.b.U8, 256))))),
					},
				})
			},
		},
		{
			name: "self_referential_constant",
			crate: func(fx *fixture) *mir.Crate {
				c := fx.crate(&mir.Body{
					Locals: locals(fx.b.Unit, fx.b.U8),
					Blocks: []mir.Block{mir.NewBlock(mir.Return(),
						mir.Assign(mir.LocalPlace(1), mir.Use(mir.ConstOperand(mir.ItemRef(fx.b.U8, 0))))),
					},
				})
				c.Consts = []mir.ConstItem{{Name: "LOOP", Value: mir.ItemRef(fx.b.U8, 0)}}
				return c
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			_, err := lower.Program(context.Background(), tt.crate(fx), lower.Options{})
			var ill *core.IllFormedError
			if !errors.As(err, &ill) {
				t.Fatalf("err = %v, want *core.IllFormedError", err)
			}
		})
	}
}

func TestBoolSwitchBecomesIf(t *testing.T) {
	fx := newFixture()
	c := fx.crate(&mir.Body{
		Locals: locals(fx.b.Unit, fx.b.Bool),
		Blocks: []mir.Block{
			mir.NewBlock(mir.SwitchInt(mir.Copy(mir.LocalPlace(1)), []mir.SwitchTarget{{Value: 0, Target: 2}}, 1),
				mir.Assign(mir.LocalPlace(1), mir.Use(mir.ConstOperand(mir.Scalar(fx.b.Bool, 1))))),
			mir.NewBlock(fx.print(mir.ConstOperand(mir.Scalar(fx.b.U8, 1)), 3)),
			mir.NewBlock(fx.print(mir.ConstOperand(mir.Scalar(fx.b.U8, 0)), 3)),
			mir.NewBlock(mir.Return()),
		},
	})
	prog := lowerCrate(t, c)
	fn := prog.Functions[prog.Start]
	// Block 0 is the storage prologue.
	term := fn.Blocks[1].Terminator
	if term.Kind != core.TermIf || term.If.Then != 2 || term.If.Else != 3 {
		t.Fatalf("terminator = %+v, want if _ then bb2 else bb3", term)
	}
	info, out := runCrate(t, c)
	if info.Kind != machine.MachineStop || out != "1\n" {
		t.Fatalf("outcome = %v, output = %q", info, out)
	}
}

func TestLoweringIsDeterministic(t *testing.T) {
	fx := newFixture()
	c := fx.arithmetic()
	first := core.DumpString(lowerCrate(t, c))
	for range 5 {
		if got := core.DumpString(lowerCrate(t, c)); got != first {
			t.Fatalf("dump changed between runs:\n%s\nvs\n%s", first, got)
		}
	}
}

func TestDumpOfLoweredProgramParses(t *testing.T) {
	fx := newFixture()
	prog := lowerCrate(t, fx.arithmetic())
	text := core.DumpString(prog)
	back, err := core.Parse(text)
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, text)
	}
	var out bytes.Buffer
	info := machine.Run(context.Background(), back, machine.Options{Stdout: &out})
	if info.Kind != machine.MachineStop || out.String() != "42\n" {
		t.Fatalf("parsed program: outcome = %v, output = %q", info, out.String())
	}
}

func TestEntryOverride(t *testing.T) {
	fx := newFixture()
	c := fx.arithmetic()
	c.Funcs = append(c.Funcs, mir.FuncDecl{Name: "alt", Body: &mir.Body{
		Locals: locals(fx.b.Unit),
		Blocks: []mir.Block{mir.NewBlock(mir.Return())},
	}})
	prog, err := lower.Program(context.Background(), c, lower.Options{Entry: "alt"})
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if len(prog.Functions) != 1 {
		t.Fatalf("functions = %d, want only alt", len(prog.Functions))
	}
	if _, err := lower.Program(context.Background(), c, lower.Options{Entry: "missing"}); err == nil {
		t.Fatal("expected an error for a missing entry")
	}
}
