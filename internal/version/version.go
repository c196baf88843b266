// Package version carries build metadata stamped in at link time:
//
//	go build -ldflags "-X github.com/hydrosat/patchseg/internal/version.Version=v0.3.0 ..."
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for a tool's -version output.
func String(tool string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", tool, Version, GitSHA, BuildTime)
}
