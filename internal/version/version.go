package version

import (
	"fmt"
	"runtime/debug"
)

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/wspkg/internal/version.Version=v0.3.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Resolved returns Version, falling back to the module version recorded by
// the Go toolchain when no ldflags were given.
func Resolved() string {
	if Version != "unknown" && Version != "" {
		return Version
	}
	if info, ok := readBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// String is the line printed by --version.
func String() string {
	return fmt.Sprintf("wspkg %s (commit %s, built %s)", Resolved(), GitCommit, BuildTime)
}
