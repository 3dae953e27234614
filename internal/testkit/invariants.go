// Package testkit holds invariant checks shared by the tests of several
// packages.
package testkit

import (
	"fmt"

	"minimize/internal/core"
)

// CheckProgramInvariants runs the checks every produced core program must
// pass:
// 1) core.Check accepts it
// 2) its dump parses back
// 3) the parsed program dumps to the same text
func CheckProgramInvariants(p *core.Program) error {
	if p == nil {
		return fmt.Errorf("nil program")
	}
	if err := core.Check(p); err != nil {
		return fmt.Errorf("check: %w", err)
	}
	text := core.DumpString(p)
	back, err := core.Parse(text)
	if err != nil {
		return fmt.Errorf("parse of dump: %w\n%s", err, text)
	}
	if again := core.DumpString(back); again != text {
		return fmt.Errorf("dump is not stable:\n%s\n---\n%s", text, again)
	}
	return nil
}
