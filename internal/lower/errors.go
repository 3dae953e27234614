package lower

import (
	"fmt"

	"minimize/internal/core"
)

// UnsupportedError reports a source construct with no core IR counterpart.
// It is a limit of the translation, not a property of the program.
type UnsupportedError struct {
	Func string // empty for type-level errors outside a function
	What string
}

func (e *UnsupportedError) Error() string {
	if e.Func == "" {
		return e.What + " is not supported"
	}
	return fmt.Sprintf("fn %s: %s is not supported", e.Func, e.What)
}

func unsupported(format string, args ...any) *UnsupportedError {
	return &UnsupportedError{What: fmt.Sprintf(format, args...)}
}

// illFormed wraps a violation found while translating a function in the
// same error type core.Check reports.
func illFormed(fn core.FnName, block core.BbName, format string, args ...any) error {
	return &core.IllFormedError{Func: fn, Block: block, Err: fmt.Errorf(format, args...)}
}
