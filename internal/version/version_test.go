package version_test

import (
	"testing"

	"github.com/fatih/color"

	"minimize/internal/version"
)

func TestString(t *testing.T) {
	color.NoColor = true
	oldCommit, oldDate := version.GitCommit, version.BuildDate
	t.Cleanup(func() { version.GitCommit, version.BuildDate = oldCommit, oldDate })

	version.GitCommit, version.BuildDate = "", ""
	if got, want := version.String(), "minimize "+version.Version; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}

	version.GitCommit, version.BuildDate = "abc123", "2026-01-02"
	want := "minimize " + version.Version + " (commit abc123, built 2026-01-02)"
	if got := version.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
