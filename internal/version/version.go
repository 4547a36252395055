// Package version exposes build metadata stamped into the sprintwatch binary.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags, e.g.
// go build -ldflags="-X github.com/andywolf/sprintwatch/internal/version.Version=v0.3.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a one-line description used by `sprintwatch version`.
func Info() string {
	return fmt.Sprintf("sprintwatch %s (commit: %s, built: %s, go: %s)",
		Version, shortCommit(), BuildDate, runtime.Version())
}

// Full returns the multi-line output of `sprintwatch version --verbose`.
func Full() string {
	return fmt.Sprintf(`sprintwatch %s
  Commit:     %s
  Built:      %s
  Go version: %s
  OS/Arch:    %s/%s`,
		Version, Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on every outbound tracker request.
func UserAgent() string {
	return "sprintwatch/" + Version
}
