package machine

import (
	"fmt"
	"strings"

	"minimize/internal/core"
)

// UbCode identifies the class of undefined behavior.
type UbCode int

// Stable codes - do not change values.
const (
	UbUnreachable UbCode = 1001 // UB1001: unreachable executed
	UbDeadLocal   UbCode = 1002 // UB1002: access to a dead local
	UbUninit      UbCode = 1003 // UB1003: uninitialized or invalid bytes
	UbDangling    UbCode = 1004 // UB1004: dangling or out-of-bounds pointer
	UbMisaligned  UbCode = 1005 // UB1005: misaligned access
	UbArithmetic  UbCode = 1006 // UB1006: overflow or division by zero
	UbOutOfBounds UbCode = 1007 // UB1007: array index out of bounds
	UbInvalidEnum UbCode = 1008 // UB1008: invalid enum discriminant
	UbBadCall     UbCode = 1009 // UB1009: call through a bad function pointer
	UbBadReturn   UbCode = 1010 // UB1010: return with no place to go
	UbBadDealloc  UbCode = 1011 // UB1011: invalid deallocation
	UbBadThread   UbCode = 1012 // UB1012: invalid thread operation
	UbStepLimit   UbCode = 1013 // UB1013: step limit exceeded or run interrupted
)

// String returns the code as "UB1001" format.
func (c UbCode) String() string {
	return fmt.Sprintf("UB%d", c)
}

// BacktraceFrame is one active call at the point of UB.
type BacktraceFrame struct {
	Func  core.FnName
	Block core.BbName
}

// UbError is undefined behavior detected by the machine.
type UbError struct {
	Code      UbCode
	Message   string
	Thread    int
	Backtrace []BacktraceFrame // innermost first
}

func (e *UbError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FormatBacktrace renders the error with its call stack.
func (e *UbError) FormatBacktrace() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s (thread %d)\n", e.Code, e.Message, e.Thread)
	for i, f := range e.Backtrace {
		fmt.Fprintf(&sb, "  %d: f%d bb%d\n", i, f.Func, f.Block)
	}
	return sb.String()
}

// errorBuilder attaches the current thread's stack to UB reports.
type errorBuilder struct {
	m *Machine
}

func (eb errorBuilder) makeError(code UbCode, format string, args ...any) *UbError {
	e := &UbError{Code: code, Message: fmt.Sprintf(format, args...)}
	if eb.m == nil || eb.m.current == nil {
		return e
	}
	th := eb.m.current
	e.Thread = th.id
	for i := len(th.frames) - 1; i >= 0; i-- {
		f := th.frames[i]
		e.Backtrace = append(e.Backtrace, BacktraceFrame{Func: f.name, Block: f.block})
	}
	return e
}

func (eb errorBuilder) unreachable() *UbError {
	return eb.makeError(UbUnreachable, "reached unreachable code")
}

func (eb errorBuilder) deadLocal(l core.LocalName) *UbError {
	return eb.makeError(UbDeadLocal, "access to dead local _%d", l)
}

func (eb errorBuilder) invalidValue(ty core.Type) *UbError {
	return eb.makeError(UbUninit, "load of uninitialized or invalid value of type %s", ty)
}

func (eb errorBuilder) invalidDiscriminant() *UbError {
	return eb.makeError(UbInvalidEnum, "enum value has invalid discriminant")
}

func (eb errorBuilder) overflow(op string) *UbError {
	return eb.makeError(UbArithmetic, "overflow in %s", op)
}

func (eb errorBuilder) divByZero() *UbError {
	return eb.makeError(UbArithmetic, "division by zero")
}

func (eb errorBuilder) indexOutOfBounds(idx core.Int, count int) *UbError {
	return eb.makeError(UbOutOfBounds, "index %s out of bounds for length %d", idx, count)
}

func (eb errorBuilder) stepLimit(limit uint64) *UbError {
	return eb.makeError(UbStepLimit, "step limit of %d exceeded", limit)
}
