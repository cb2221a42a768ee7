package buildinfo

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if !strings.HasPrefix(ua, "axiom/"+Version) {
		t.Errorf("UserAgent() = %q, want prefix %q", ua, "axiom/"+Version)
	}
}

func TestInfoKeys(t *testing.T) {
	info := Info()
	for _, k := range []string{"version", "git_commit", "go_version", "uptime"} {
		if _, ok := info[k]; !ok {
			t.Errorf("Info() missing key %q", k)
		}
	}
}

func TestApplyVCS(t *testing.T) {
	oldCommit, oldTime := GitCommit, BuildTime
	t.Cleanup(func() { GitCommit, BuildTime = oldCommit, oldTime })

	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
	}

	GitCommit, BuildTime = unknown, unknown
	applyVCS(settings)
	if GitCommit != "0123456789ab-dirty" {
		t.Errorf("GitCommit = %q, want 0123456789ab-dirty", GitCommit)
	}
	if BuildTime != "2026-10-01T12:00:00Z" {
		t.Errorf("BuildTime = %q", BuildTime)
	}

	GitCommit, BuildTime = "abc123", "yesterday"
	applyVCS(settings)
	if GitCommit != "abc123" || BuildTime != "yesterday" {
		t.Errorf("ldflags values overwritten: %q %q", GitCommit, BuildTime)
	}
}
