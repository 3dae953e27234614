package lower

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"minimize/internal/core"
	"minimize/internal/layout"
	"minimize/internal/mir"
	"minimize/internal/observ"
	"minimize/internal/trace"
	"minimize/internal/types"
)

// Options selects what to translate.
type Options struct {
	// Entry overrides the crate's entry function.
	Entry string
	// Target is the host layout target. The zero value selects
	// layout.X86_64Linux.
	Target layout.Target
	// Progress, when set, counts translated functions.
	Progress *observ.Progress
}

// programLowerer is the state shared by all functions of one translation.
type programLowerer struct {
	crate   *mir.Crate
	types   *TypeCache
	fnNames map[mir.FuncID]core.FnName
}

// Program translates the entry function of crate and every function it can
// reach into a core program whose start function is the entry. The result
// has passed core.Check.
func Program(ctx context.Context, crate *mir.Crate, opts Options) (*core.Program, error) {
	ctx, span := trace.Start(ctx, trace.ScopePass, "lower")
	prog, err := lowerProgram(ctx, crate, opts)
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	span.WithExtra("functions", strconv.Itoa(len(prog.Functions))).End("")
	return prog, nil
}

func lowerProgram(ctx context.Context, crate *mir.Crate, opts Options) (*core.Program, error) {
	if err := mir.Validate(crate); err != nil {
		return nil, &core.IllFormedError{Func: -1, Block: -1, Err: err}
	}
	entryName := opts.Entry
	if entryName == "" {
		entryName = crate.Entry
	}
	if entryName == "" {
		return nil, errors.New("no entry function selected")
	}
	entry, ok := crate.Lookup(entryName)
	if !ok {
		return nil, fmt.Errorf("entry function %q not found", entryName)
	}
	if crate.Funcs[entry].Kind != mir.FuncBody {
		return nil, fmt.Errorf("entry function %q has no body", entryName)
	}

	target := opts.Target
	if target.PtrSize == 0 {
		target = layout.X86_64Linux()
	}
	if target.PtrSize != core.PtrSize {
		return nil, unsupported("target %s with %d-byte pointers", target.Triple, target.PtrSize)
	}

	order, err := reachable(crate, entry)
	if err != nil {
		return nil, &core.IllFormedError{Func: -1, Block: -1, Err: err}
	}
	pl := &programLowerer{
		crate:   crate,
		types:   NewTypeCache(crate.Types, layout.New(target, crate.Types)),
		fnNames: make(map[mir.FuncID]core.FnName, len(order)),
	}
	for i, id := range order {
		pl.fnNames[id] = core.FnName(i)
	}

	tr, parent := trace.FromContext(ctx), trace.ParentID(ctx)
	fns := make([]core.Function, len(order))
	errs := make([]error, len(order))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, id := range order {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			decl := &crate.Funcs[id]
			span := trace.Begin(tr, trace.ScopeFunction, decl.Name, parent)
			fn, err := pl.function(core.FnName(i), decl)
			if err != nil {
				span.Fail(err)
				errs[i] = err
				return nil
			}
			span.WithExtra("blocks", strconv.Itoa(len(fn.Blocks))).End("")
			opts.Progress.FunctionLowered()
			fns[i] = fn
			return nil
		})
	}
	// Workers record failures per function so the reported error does not
	// depend on scheduling.
	_ = g.Wait() //nolint:errcheck
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	prog := &core.Program{Functions: fns, Start: pl.fnNames[entry]}
	if err := core.Check(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// reachable lists, in declaration order, the function bodies the entry can
// refer to through function items in local types or constants.
func reachable(crate *mir.Crate, entry mir.FuncID) ([]mir.FuncID, error) {
	seen := map[mir.FuncID]bool{entry: true}
	work := []mir.FuncID{entry}
	var errs []error
	add := func(id mir.FuncID) {
		if id < 0 || int(id) >= len(crate.Funcs) {
			errs = append(errs, fmt.Errorf("reference to unknown function #%d", id))
			return
		}
		if seen[id] || crate.Funcs[id].Kind != mir.FuncBody {
			return
		}
		seen[id] = true
		work = append(work, id)
	}
	addType := func(id types.TypeID) {
		if tt, ok := crate.Types.Lookup(id); ok && tt.Kind == types.KindFnDef {
			add(mir.FuncID(tt.Payload))
		}
	}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		body := crate.Funcs[id].Body
		for _, l := range body.Locals {
			addType(l.Type)
		}
		visitConsts(crate, body, func(c *mir.Const) {
			if c.Kind == mir.ConstFn {
				add(c.Fn)
			}
			addType(c.Type)
		})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out := make([]mir.FuncID, 0, len(seen))
	for i := range crate.Funcs {
		if seen[mir.FuncID(i)] {
			out = append(out, mir.FuncID(i))
		}
	}
	return out, nil
}

// visitConsts calls fn on every constant a body mentions, including the
// fields of aggregates and the values of referenced constant items.
func visitConsts(crate *mir.Crate, body *mir.Body, fn func(*mir.Const)) {
	items := make(map[mir.ConstID]bool)
	var visit func(c *mir.Const)
	visit = func(c *mir.Const) {
		fn(c)
		for i := range c.Fields {
			visit(&c.Fields[i])
		}
		if c.Kind == mir.ConstUnevaluated && !items[c.Item] && int(c.Item) < len(crate.Consts) {
			items[c.Item] = true
			visit(&crate.Consts[c.Item].Value)
		}
	}
	operand := func(op *mir.Operand) {
		if op.Kind == mir.OperandConst {
			visit(&op.Const)
		}
	}
	for bi := range body.Blocks {
		bb := &body.Blocks[bi]
		for si := range bb.Stmts {
			s := &bb.Stmts[si]
			if s.Kind != mir.StmtAssign {
				continue
			}
			rv := &s.Assign.Src
			switch rv.Kind {
			case mir.RValueUse:
				operand(&rv.Use)
			case mir.RValueBinaryOp:
				operand(&rv.Binary.Left)
				operand(&rv.Binary.Right)
			case mir.RValueUnaryOp:
				operand(&rv.Unary.Operand)
			case mir.RValueCast:
				operand(&rv.Cast.Operand)
			case mir.RValueAggregate:
				for i := range rv.Aggregate.Ops {
					operand(&rv.Aggregate.Ops[i])
				}
			}
		}
		switch bb.Term.Kind {
		case mir.TermSwitchInt:
			operand(&bb.Term.SwitchInt.Discr)
		case mir.TermCall:
			operand(&bb.Term.Call.Func)
			for i := range bb.Term.Call.Args {
				operand(&bb.Term.Call.Args[i])
			}
		case mir.TermAssert:
			operand(&bb.Term.Assert.Cond)
		}
	}
}
