// Package buildinfo exposes version metadata stamped at compile time
// via -ldflags, plus process uptime for the health endpoint.
package buildinfo

import (
	"fmt"
	"runtime"
	"time"
)

// Stamped by the release build; defaults cover `go run` and tests.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

var started = time.Now()

// Info returns build and runtime metadata for the version endpoint and
// the version subcommand.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     Uptime().String(),
	}
}

// Uptime returns how long the process has been running, truncated to
// whole seconds.
func Uptime() time.Duration {
	return time.Since(started).Truncate(time.Second)
}

// UserAgent identifies Atelier on outbound HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("Atelier/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// String is the one-line banner logged at startup.
func String() string {
	return fmt.Sprintf("Atelier %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}
