// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of the binary.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// String formats the build metadata for humans.
func String() string {
	return fmt.Sprintf("fareradar %s (commit %s, built %s)", Version, Commit, BuildDate)
}
