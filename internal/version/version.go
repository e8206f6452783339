// Package version holds build-time identifiers, set via -ldflags -X at
// release build time and left at their defaults for local builds.
package version

import "runtime"

var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain version the binary was built with.
var GoInfo = runtime.Version()
