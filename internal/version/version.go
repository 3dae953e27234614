package version

import (
	"strings"

	"github.com/fatih/color"
)

// Version information for the minimize binary.
// These variables can be overridden at build time via -ldflags.
var (
	// Version is the semantic version of the binary.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	nameColor    = color.New(color.FgCyan, color.Bold)
	versionColor = color.New(color.FgGreen, color.Bold)
)

// String renders the version line printed by --version. Colors follow the
// global color setting.
func String() string {
	var sb strings.Builder
	sb.WriteString(nameColor.Sprint("minimize"))
	sb.WriteString(" ")
	sb.WriteString(versionColor.Sprint(Version))
	var extra []string
	if c := strings.TrimSpace(GitCommit); c != "" {
		extra = append(extra, "commit "+c)
	}
	if d := strings.TrimSpace(BuildDate); d != "" {
		extra = append(extra, "built "+d)
	}
	if len(extra) > 0 {
		sb.WriteString(" (" + strings.Join(extra, ", ") + ")")
	}
	return sb.String()
}
