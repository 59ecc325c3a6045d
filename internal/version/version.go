// Package version reports build information stamped in with -ldflags, falling
// back to the module's VCS settings.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// These variables are set at build time using -ldflags, e.g.
//
//	-X github.com/conneroisu/hotplate/internal/version.Version=v1.2.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	BuildUser = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
	BuildUser string    `json:"build_user,omitempty"`
	Release   bool      `json:"release"`
	Dirty     bool      `json:"dirty"`
}

// GetBuildInfo collects everything known about the running binary.
func GetBuildInfo() *BuildInfo {
	user := BuildUser
	if user == "unknown" {
		user = ""
	}
	return &BuildInfo{
		Version:   GetVersion(),
		GitCommit: GetGitCommit(),
		BuildTime: parseBuildTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		BuildUser: user,
		Release:   IsRelease(),
		Dirty:     IsDirty(),
	}
}

// GetVersion returns the stamped version, the module version, or
// dev-<short commit>.
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}
		if rev := setting(info, "vcs.revision"); len(rev) >= 7 {
			return "dev-" + rev[:7]
		}
	}
	return "dev"
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if rev := setting(info, "vcs.revision"); rev != "" {
			return rev
		}
	}
	return "unknown"
}

// GetShortVersion returns a short version string suitable for display
func GetShortVersion() string {
	v := GetVersion()
	commit := GetGitCommit()
	if commit == "unknown" || len(commit) < 7 || strings.HasPrefix(v, "dev-") {
		return v
	}
	if v == "dev" {
		return "dev-" + commit[:7]
	}
	return fmt.Sprintf("%s (%s)", v, commit[:7])
}

// IsRelease reports whether this is a tagged build.
func IsRelease() bool {
	v := GetVersion()
	return v != "dev" && !strings.HasPrefix(v, "dev-")
}

// IsDirty reports whether the working tree had local changes at build time.
func IsDirty() bool {
	if info, ok := debug.ReadBuildInfo(); ok {
		return setting(info, "vcs.modified") == "true"
	}
	return false
}

// String renders the multi-line form printed by `hotplate version --detailed`.
func (b *BuildInfo) String() string {
	lines := []string{"Version: " + b.Version}
	if b.GitCommit != "unknown" {
		lines = append(lines, "Commit: "+b.GitCommit)
	}
	if !b.BuildTime.IsZero() {
		lines = append(lines, "Built: "+b.BuildTime.Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+b.GoVersion, "Platform: "+b.Platform)
	if b.BuildUser != "" {
		lines = append(lines, "User: "+b.BuildUser)
	}
	if b.Dirty {
		lines = append(lines, "Working directory: dirty")
	}
	return strings.Join(lines, "\n")
}

func setting(info *debug.BuildInfo, key string) string {
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

var buildTimeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseBuildTime returns the zero time for anything it cannot parse.
func parseBuildTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, format := range buildTimeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
