package core

// StmtKind enumerates statement kinds.
type StmtKind uint8

const (
	StmtAssign StmtKind = iota
	StmtStorageLive
	StmtStorageDead
	StmtSetDiscriminant
)

type Statement struct {
	Kind StmtKind

	Assign          AssignStmt
	Local           LocalName // StmtStorageLive, StmtStorageDead
	SetDiscriminant SetDiscriminantStmt
}

type AssignStmt struct {
	Dest   PlaceExpr
	Source ValueExpr
}

type SetDiscriminantStmt struct {
	Dest  PlaceExpr
	Value Int
}

// TermKind enumerates terminator kinds.
type TermKind uint8

const (
	TermGoto TermKind = iota
	TermIf
	TermSwitchInt
	TermCall
	TermIntrinsic
	TermReturn
	TermExit
	TermUnreachable
)

type Terminator struct {
	Kind TermKind

	Goto      BbName
	If        IfTerm
	SwitchInt SwitchIntTerm
	Call      CallTerm
	Intrinsic IntrinsicTerm
}

type IfTerm struct {
	Cond       ValueExpr
	Then, Else BbName
}

type SwitchCase struct {
	Value  Int
	Target BbName
}

type SwitchIntTerm struct {
	Value     ValueExpr
	Cases     []SwitchCase
	Otherwise BbName
}

// CallTerm calls a function pointer. Ret is nil when the result is
// discarded; Next is nil when the callee must not return.
type CallTerm struct {
	Callee ValueExpr
	Args   []ValueExpr
	Ret    *PlaceExpr
	Next   *BbName
}

// Intrinsic enumerates operations the machine provides directly.
type Intrinsic uint8

const (
	IntrinsicPrint Intrinsic = iota
	IntrinsicEPrint
	IntrinsicAllocate
	IntrinsicDeallocate
	IntrinsicSpawn
	IntrinsicJoin
)

var intrinsicNames = [...]string{
	IntrinsicPrint:      "print",
	IntrinsicEPrint:     "eprint",
	IntrinsicAllocate:   "allocate",
	IntrinsicDeallocate: "deallocate",
	IntrinsicSpawn:      "spawn",
	IntrinsicJoin:       "join",
}

func (i Intrinsic) String() string {
	if int(i) < len(intrinsicNames) {
		return intrinsicNames[i]
	}
	return "intrinsic?"
}

// IntrinsicByName resolves the dump spelling of an intrinsic.
func IntrinsicByName(name string) (Intrinsic, bool) {
	for i, n := range intrinsicNames {
		if n == name {
			return Intrinsic(i), true
		}
	}
	return 0, false
}

type IntrinsicTerm struct {
	Intrinsic Intrinsic
	Args      []ValueExpr
	Ret       *PlaceExpr
	Next      *BbName
}

type BasicBlock struct {
	Statements []Statement
	Terminator Terminator
}

// Function is a control-flow graph over typed locals. Args lists the locals
// that receive the arguments; Ret, when set, is the return place.
type Function struct {
	Locals []Type
	Args   []LocalName
	Ret    *LocalName
	Blocks []BasicBlock
	Start  BbName
}

// Program is a set of functions and the one that runs first.
type Program struct {
	Functions []Function
	Start     FnName
}
