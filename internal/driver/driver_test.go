package driver_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"minimize/internal/driver"
	"minimize/internal/machine"
	"minimize/internal/mir"
	"minimize/internal/observ"
	"minimize/internal/types"
)

func init() {
	color.NoColor = true
}

// crateWith builds a crate whose main has the given locals and blocks.
// Function 1 is print and function 2 is allocate.
func crateWith(in *types.Interner, locals []types.TypeID, blocks ...mir.Block) *mir.Crate {
	ls := make([]mir.Local, len(locals))
	for i, ty := range locals {
		ls[i] = mir.Local{Type: ty}
	}
	return &mir.Crate{
		Types: in,
		Entry: "main",
		Funcs: []mir.FuncDecl{
			{Name: "main", Body: &mir.Body{Locals: ls, Blocks: blocks}},
			{Name: "print", Kind: mir.FuncIntrinsic, Intrinsic: "print"},
			{Name: "allocate", Kind: mir.FuncIntrinsic, Intrinsic: "allocate"},
		},
	}
}

func printing() *mir.Crate {
	in := types.NewInterner()
	b := in.Builtins()
	printTy := in.Intern(types.MakeFnDef(1))
	return crateWith(in, []types.TypeID{b.Unit},
		mir.NewBlock(mir.Call(mir.ConstOperand(mir.FnRef(printTy, 1)),
			[]mir.Operand{mir.ConstOperand(mir.Scalar(b.I32, 0xffff_fffe))}, mir.LocalPlace(0), 1)),
		mir.NewBlock(mir.Return()),
	)
}

func leaking() *mir.Crate {
	in := types.NewInterner()
	b := in.Builtins()
	allocTy := in.Intern(types.MakeFnDef(2))
	raw := in.Intern(types.MakePtr(b.U8, true))
	eight := mir.ConstOperand(mir.Scalar(b.Usize, 8))
	return crateWith(in, []types.TypeID{b.Unit, raw},
		mir.NewBlock(mir.Call(mir.ConstOperand(mir.FnRef(allocTy, 2)), []mir.Operand{eight, eight}, mir.LocalPlace(1), 1)),
		mir.NewBlock(mir.Return()),
	)
}

func unreachable() *mir.Crate {
	in := types.NewInterner()
	return crateWith(in, []types.TypeID{in.Builtins().Unit}, mir.NewBlock(mir.Unreachable()))
}

func wide() *mir.Crate {
	in := types.NewInterner()
	return crateWith(in, []types.TypeID{in.Builtins().Unit, in.Intern(types.MakeUint(types.Width128))},
		mir.NewBlock(mir.Return()))
}

func illFormed() *mir.Crate {
	in := types.NewInterner()
	b := in.Builtins()
	return crateWith(in, []types.TypeID{b.Unit, b.U8},
		mir.NewBlock(mir.Return(),
			mir.Assign(mir.LocalPlace(1), mir.Use(mir.ConstOperand(mir.Scalar(b.Bool, 1))))))
}

func TestRunOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		crate    func() *mir.Crate
		wantKind machine.TerminationKind
		wantCode int
		wantOut  string
		wantLine string
	}{
		{name: "stop", crate: printing, wantKind: machine.MachineStop, wantCode: driver.ExitOK, wantOut: "-2\n"},
		{name: "ub", crate: unreachable, wantKind: machine.Ub, wantCode: driver.ExitFailure, wantLine: "UB: "},
		{name: "leak", crate: leaking, wantKind: machine.MemoryLeak, wantCode: driver.ExitFailure, wantLine: "program leaked memory"},
		{name: "ill_formed", crate: illFormed, wantKind: machine.IllFormed, wantCode: driver.ExitFailure, wantLine: "ERR: program not well-formed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr, report bytes.Buffer
			out, err := driver.Run(context.Background(), tt.crate(), driver.Options{Stdout: &stdout, Stderr: &stderr})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if out.Info.Kind != tt.wantKind {
				t.Fatalf("outcome = %v, want %v", out.Info, tt.wantKind)
			}
			if code := out.ExitCode(); code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d", code, tt.wantCode)
			}
			if stdout.String() != tt.wantOut {
				t.Fatalf("stdout = %q, want %q", stdout.String(), tt.wantOut)
			}
			driver.Report(&report, out)
			if tt.wantLine == "" && report.Len() != 0 {
				t.Fatalf("unexpected report %q", report.String())
			}
			if !strings.HasPrefix(report.String(), tt.wantLine) {
				t.Fatalf("report = %q, want prefix %q", report.String(), tt.wantLine)
			}
		})
	}
}

func TestUnsupportedExitsWithTwo(t *testing.T) {
	out, err := driver.Run(context.Background(), wide(), driver.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Unsupported == nil || out.ExitCode() != driver.ExitUnsupported {
		t.Fatalf("outcome = %+v", out)
	}
	var report bytes.Buffer
	driver.Report(&report, out)
	if !strings.HasPrefix(report.String(), "unsupported: fn main: 128-bit integer") {
		t.Fatalf("report = %q", report.String())
	}
}

func TestMissingEntryIsAnError(t *testing.T) {
	if _, err := driver.Run(context.Background(), printing(), driver.Options{Entry: "nope"}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestDumpDoesNotRun(t *testing.T) {
	var stdout bytes.Buffer
	timer := observ.NewTimer()
	out, err := driver.Run(context.Background(), unreachable(), driver.Options{Dump: true, Stdout: &stdout, Timer: timer})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Dumped || out.ExitCode() != driver.ExitOK {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(stdout.String(), "unreachable") {
		t.Fatalf("dump = %q", stdout.String())
	}
	report := timer.Report()
	if len(report.Phases) != 2 || report.Phases[0].Name != "lower" || report.Phases[1].Name != "dump" {
		t.Fatalf("phases = %+v", report.Phases)
	}
}

func TestCrateFileAndCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.mp")
	if err := driver.SaveCrate(path, printing()); err != nil {
		t.Fatalf("SaveCrate: %v", err)
	}
	cache, err := driver.OpenDiskCache(filepath.Join(dir, "cache"), "minimize")
	if err != nil {
		t.Fatalf("OpenDiskCache: %v", err)
	}

	for i, wantHit := range []bool{false, true} {
		crate, digest, err := driver.LoadCrate(path)
		if err != nil {
			t.Fatalf("LoadCrate: %v", err)
		}
		var stdout bytes.Buffer
		out, err := driver.Run(context.Background(), crate, driver.Options{
			Stdout:      &stdout,
			Cache:       cache,
			CrateDigest: digest,
		})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if out.CacheHit != wantHit {
			t.Fatalf("run %d: cache hit = %v, want %v", i, out.CacheHit, wantHit)
		}
		if out.Info.Kind != machine.MachineStop || stdout.String() != "-2\n" {
			t.Fatalf("run %d: outcome = %v, stdout = %q", i, out.Info, stdout.String())
		}
	}

	if err := cache.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	crate, digest, err := driver.LoadCrate(path)
	if err != nil {
		t.Fatal(err)
	}
	out, err := driver.Run(context.Background(), crate, driver.Options{Stdout: &bytes.Buffer{}, Cache: cache, CrateDigest: digest})
	if err != nil || out.CacheHit {
		t.Fatalf("after DropAll: hit = %v, err = %v", out.CacheHit, err)
	}
}

func TestProgressCountsLoweringAndSteps(t *testing.T) {
	var progress observ.Progress
	if _, err := driver.Run(context.Background(), printing(), driver.Options{Stdout: &bytes.Buffer{}, Progress: &progress}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	fns, steps := progress.Snapshot()
	if fns != 1 || steps == 0 {
		t.Fatalf("progress = %s", progress.String())
	}
}

func TestUnsupportedResultsAreNotCached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wide.mp")
	if err := driver.SaveCrate(path, wide()); err != nil {
		t.Fatalf("SaveCrate: %v", err)
	}
	cache, err := driver.OpenDiskCache(filepath.Join(dir, "cache"), "minimize")
	if err != nil {
		t.Fatalf("OpenDiskCache: %v", err)
	}
	for i := range 2 {
		crate, digest, err := driver.LoadCrate(path)
		if err != nil {
			t.Fatalf("LoadCrate: %v", err)
		}
		out, err := driver.Run(context.Background(), crate, driver.Options{Cache: cache, CrateDigest: digest})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if out.Unsupported == nil || out.CacheHit {
			t.Fatalf("run %d: outcome = %+v", i, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "cache", "lowered")); !os.IsNotExist(err) {
		t.Fatalf("cache directory was written: %v", err)
	}
}
