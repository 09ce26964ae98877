// Package version holds build metadata for the clantracker binary,
// stamped in at build time via -ldflags.
package version

var (
	// Version is the release version of the tracker binary.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "unknown"
	// BuildDate is when the binary was built.
	BuildDate = "unknown"
)
