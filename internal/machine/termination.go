package machine

import "fmt"

// TerminationKind enumerates the ways a run can end.
type TerminationKind uint8

const (
	// MachineStop is a normal stop: exit, or return from the start function.
	MachineStop TerminationKind = iota
	// IllFormed means the program failed the well-formedness check.
	IllFormed
	// Ub means execution reached undefined behavior.
	Ub
	// Deadlock means every live thread is blocked.
	Deadlock
	// MemoryLeak means heap memory was still allocated at the stop.
	MemoryLeak
)

func (k TerminationKind) String() string {
	switch k {
	case MachineStop:
		return "machine-stop"
	case IllFormed:
		return "ill-formed"
	case Ub:
		return "ub"
	case Deadlock:
		return "deadlock"
	case MemoryLeak:
		return "memory-leak"
	default:
		return "unknown"
	}
}

// TerminationInfo is the single outcome of a run. Detail carries the
// checker's message for IllFormed and the Ub message for Ub.
type TerminationInfo struct {
	Kind   TerminationKind
	Detail string
	Err    error // *UbError or the check error, when there is one
}

func (t TerminationInfo) String() string {
	if t.Detail == "" {
		return t.Kind.String()
	}
	return fmt.Sprintf("%s: %s", t.Kind, t.Detail)
}

func stop() TerminationInfo { return TerminationInfo{Kind: MachineStop} }

func illFormed(err error) TerminationInfo {
	return TerminationInfo{Kind: IllFormed, Detail: err.Error(), Err: err}
}

func ub(err *UbError) TerminationInfo {
	return TerminationInfo{Kind: Ub, Detail: err.Message, Err: err}
}
