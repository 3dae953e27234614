package driver

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"minimize/internal/machine"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	ubColor   = color.New(color.FgMagenta, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
)

// Report writes the one-line description of o to w. A normal stop and a
// dump print nothing.
func Report(w io.Writer, o Outcome) {
	if line := reportLine(o); line != "" {
		_, _ = fmt.Fprintln(w, line)
	}
}

func reportLine(o Outcome) string {
	if o.Unsupported != nil {
		return warnColor.Sprint("unsupported:") + " " + o.Unsupported.Error()
	}
	if o.Dumped {
		return ""
	}
	switch o.Info.Kind {
	case machine.MachineStop:
		return ""
	case machine.IllFormed:
		return errColor.Sprint("ERR:") + " program not well-formed"
	case machine.Ub:
		return ubColor.Sprint("UB:") + " " + o.Info.Detail
	case machine.Deadlock:
		return errColor.Sprint("program dead-locked")
	case machine.MemoryLeak:
		return errColor.Sprint("program leaked memory")
	}
	return errColor.Sprint("unknown outcome: ") + o.Info.String()
}
