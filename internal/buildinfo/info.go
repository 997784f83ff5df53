// Package buildinfo carries version stamps injected with
// -ldflags "-X github.com/cleared-dev/pocketbank/internal/buildinfo.Version=...".
package buildinfo

import "fmt"

// Stamped at link time; the defaults identify a local build.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the version line printed by --version.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
