// Package buildinfo reports the AXIOM version. Release builds stamp the
// variables below with -ldflags; plain `go build` and `go install` builds
// fall back to the VCS settings the toolchain embeds.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknown = "unknown"

// Set at build time via -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = unknown
	GitBranch = unknown
	BuildTime = unknown
)

var startTime = time.Now()

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		applyVCS(bi.Settings)
	}
}

// applyVCS fills GitCommit and BuildTime from embedded vcs.* settings
// when ldflags left them unset. A dirty tree gets a "-dirty" suffix.
func applyVCS(settings []debug.BuildSetting) {
	var revision, modified, vcsTime string
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			vcsTime = s.Value
		}
	}
	if GitCommit == unknown && revision != "" {
		if len(revision) > 12 {
			revision = revision[:12]
		}
		if modified == "true" {
			revision += "-dirty"
		}
		GitCommit = revision
	}
	if BuildTime == unknown && vcsTime != "" {
		BuildTime = vcsTime
	}
}

// Info is the payload of GET /v1/version and `axiom version -o json`.
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

// Uptime is the time since process start, to the second.
func Uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

// UserAgent identifies AXIOM to Home Assistant, Ollama and search APIs.
func UserAgent() string {
	return fmt.Sprintf("axiom/%s (%s; %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// String is the one-line banner logged at startup.
func String() string {
	return fmt.Sprintf("AXIOM %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}
