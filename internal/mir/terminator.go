package mir

type TermKind uint8

const (
	TermNone TermKind = iota
	TermGoto
	TermSwitchInt
	TermReturn
	TermUnreachable
	TermCall
	TermAssert
	TermDrop
)

type Terminator struct {
	Kind TermKind

	Goto      GotoTerm      `msgpack:",omitempty"`
	SwitchInt SwitchIntTerm `msgpack:",omitempty"`
	Call      CallTerm      `msgpack:",omitempty"`
	Assert    AssertTerm    `msgpack:",omitempty"`
	Drop      DropTerm      `msgpack:",omitempty"`
}

type GotoTerm struct {
	Target BlockID
}

// SwitchTarget is one arm of a switch. Value holds the raw bits of the
// scrutinee type.
type SwitchTarget struct {
	Value  uint64
	Target BlockID
}

// SwitchIntTerm jumps to the first arm whose value equals the scrutinee.
type SwitchIntTerm struct {
	Discr     Operand
	Targets   []SwitchTarget
	Otherwise BlockID
}

// CallTerm calls Func and stores the result into Dst. Target is NoBlockID
// for calls that never return.
type CallTerm struct {
	Func   Operand
	Args   []Operand
	Dst    Place
	Target BlockID
}

type AssertTerm struct {
	Cond     Operand
	Expected bool
	Target   BlockID
}

type DropTerm struct {
	Place  Place
	Target BlockID
}

// Successors lists the blocks control can reach from t.
func (t *Terminator) Successors() []BlockID {
	switch t.Kind {
	case TermGoto:
		return []BlockID{t.Goto.Target}
	case TermSwitchInt:
		out := make([]BlockID, 0, len(t.SwitchInt.Targets)+1)
		for _, arm := range t.SwitchInt.Targets {
			out = append(out, arm.Target)
		}
		return append(out, t.SwitchInt.Otherwise)
	case TermCall:
		if t.Call.Target == NoBlockID {
			return nil
		}
		return []BlockID{t.Call.Target}
	case TermAssert:
		return []BlockID{t.Assert.Target}
	case TermDrop:
		return []BlockID{t.Drop.Target}
	default:
		return nil
	}
}
