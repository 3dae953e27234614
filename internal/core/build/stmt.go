package build

import "minimize/internal/core"

// Assign stores src into dest.
func Assign(dest core.PlaceExpr, src core.ValueExpr) core.Statement {
	return core.Statement{Kind: core.StmtAssign, Assign: core.AssignStmt{Dest: dest, Source: src}}
}

// StorageLive allocates the storage of a local.
func StorageLive(l core.LocalName) core.Statement {
	return core.Statement{Kind: core.StmtStorageLive, Local: l}
}

// StorageDead frees the storage of a local.
func StorageDead(l core.LocalName) core.Statement {
	return core.Statement{Kind: core.StmtStorageDead, Local: l}
}

// SetDiscriminant writes the tag of the given variant into an enum place.
func SetDiscriminant(dest core.PlaceExpr, discriminant int64) core.Statement {
	return core.Statement{Kind: core.StmtSetDiscriminant, SetDiscriminant: core.SetDiscriminantStmt{
		Dest:  dest,
		Value: core.IntFromInt64(discriminant),
	}}
}

// Goto jumps to b.
func Goto(b core.BbName) core.Terminator {
	return core.Terminator{Kind: core.TermGoto, Goto: b}
}

// If branches on a boolean.
func If(cond core.ValueExpr, then, els core.BbName) core.Terminator {
	return core.Terminator{Kind: core.TermIf, If: core.IfTerm{Cond: cond, Then: then, Else: els}}
}

// Case is one arm of a SwitchInt.
func Case(value int64, target core.BbName) core.SwitchCase {
	return core.SwitchCase{Value: core.IntFromInt64(value), Target: target}
}

// SwitchInt jumps to the target of the first case equal to v, or to
// otherwise.
func SwitchInt(v core.ValueExpr, cases []core.SwitchCase, otherwise core.BbName) core.Terminator {
	return core.Terminator{Kind: core.TermSwitchInt, SwitchInt: core.SwitchIntTerm{
		Value:     v,
		Cases:     nilIfEmpty(cases),
		Otherwise: otherwise,
	}}
}

// Call calls callee. A nil ret discards the result; a nil next means the
// callee must not return.
func Call(callee core.ValueExpr, args []core.ValueExpr, ret *core.PlaceExpr, next *core.BbName) core.Terminator {
	return core.Terminator{Kind: core.TermCall, Call: core.CallTerm{
		Callee: callee,
		Args:   nilIfEmpty(args),
		Ret:    ret,
		Next:   next,
	}}
}

// Intrinsic invokes a machine intrinsic.
func Intrinsic(in core.Intrinsic, args []core.ValueExpr, ret *core.PlaceExpr, next *core.BbName) core.Terminator {
	return core.Terminator{Kind: core.TermIntrinsic, Intrinsic: core.IntrinsicTerm{
		Intrinsic: in,
		Args:      nilIfEmpty(args),
		Ret:       ret,
		Next:      next,
	}}
}

// Print writes the values to the machine's standard output, then jumps to next.
func Print(next core.BbName, args ...core.ValueExpr) core.Terminator {
	return Intrinsic(core.IntrinsicPrint, args, nil, &next)
}

// Allocate stores a fresh heap pointer into ret.
func Allocate(size, align core.ValueExpr, ret core.PlaceExpr, next core.BbName) core.Terminator {
	return Intrinsic(core.IntrinsicAllocate, []core.ValueExpr{size, align}, &ret, &next)
}

// Deallocate frees a heap allocation.
func Deallocate(ptr, size, align core.ValueExpr, next core.BbName) core.Terminator {
	return Intrinsic(core.IntrinsicDeallocate, []core.ValueExpr{ptr, size, align}, nil, &next)
}

// Spawn starts fn on a new thread with data as its argument and stores the
// thread id into ret.
func Spawn(fn, data core.ValueExpr, ret *core.PlaceExpr, next core.BbName) core.Terminator {
	return Intrinsic(core.IntrinsicSpawn, []core.ValueExpr{fn, data}, ret, &next)
}

// Join waits for a thread to finish.
func Join(thread core.ValueExpr, next core.BbName) core.Terminator {
	return Intrinsic(core.IntrinsicJoin, []core.ValueExpr{thread}, nil, &next)
}

// Return leaves the current function.
func Return() core.Terminator {
	return core.Terminator{Kind: core.TermReturn}
}

// Exit stops the whole program.
func Exit() core.Terminator {
	return core.Terminator{Kind: core.TermExit}
}

// Unreachable is undefined behavior when executed.
func Unreachable() core.Terminator {
	return core.Terminator{Kind: core.TermUnreachable}
}

// Next returns a pointer to b for the optional successor of a call.
func Next(b core.BbName) *core.BbName {
	return &b
}

// RetPlace returns a pointer to p for the optional return place of a call.
func RetPlace(p core.PlaceExpr) *core.PlaceExpr {
	return &p
}
