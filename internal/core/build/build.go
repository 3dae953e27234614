// Package build constructs core IR programs directly. Its constructors
// produce exactly the value shapes the lowering pipeline emits, so both
// paths feed the same checker and machine.
package build

import (
	"minimize/internal/core"
)

// Ret says whether a function has a return place.
type Ret bool

const (
	RetNo  Ret = false
	RetYes Ret = true
)

// Program assembles functions; the first one is the start function.
func Program(fns ...core.Function) *core.Program {
	return &core.Program{Functions: nilIfEmpty(fns), Start: 0}
}

// Function assembles a function whose entry is block 0. With RetYes local 0
// is the return place and the arguments are locals 1..=numArgs; with RetNo
// the arguments are locals 0..numArgs.
func Function(ret Ret, numArgs int, locals []core.Type, blocks []core.BasicBlock) core.Function {
	fn := core.Function{
		Locals: nilIfEmpty(locals),
		Blocks: nilIfEmpty(blocks),
	}
	first := 0
	if ret {
		r := core.LocalName(0)
		fn.Ret = &r
		first = 1
	}
	for i := range numArgs {
		fn.Args = append(fn.Args, core.LocalName(first+i))
	}
	return fn
}

// SmallProgram is a single function with one block that runs statements
// and exits.
func SmallProgram(locals []core.Type, statements ...core.Statement) *core.Program {
	b := Block(Exit(), statements...)
	return Program(Function(RetNo, 0, locals, []core.BasicBlock{b}))
}

// Block assembles a basic block.
func Block(term core.Terminator, statements ...core.Statement) core.BasicBlock {
	return core.BasicBlock{Statements: nilIfEmpty(statements), Terminator: term}
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
