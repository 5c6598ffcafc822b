// Package version carries build metadata injected with ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/cranebuilder/internal/version.Version=v0.3.0"
package version

import "fmt"

// Version is the release tag.
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	if GitCommit == "unknown" && BuildTime == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
