// Package version reports build information for `folio version`.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version" yaml:"version"`
	Commit    string    `json:"commit" yaml:"commit"`
	BuiltAt   time.Time `json:"built_at" yaml:"built_at"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
}

// Set at build time with -ldflags "-X github.com/conneroisu/folio/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Get collects the build information, falling back to the module's VCS
// stamps when the linker variables were not set.
func Get() Info {
	return Info{
		Version:   resolveVersion(),
		Commit:    resolveCommit(),
		BuiltAt:   parseBuildTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func resolveVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	if rev := vcsSetting(info, "vcs.revision"); len(rev) >= 7 {
		return "dev-" + rev[:7]
	}
	return "dev"
}

func resolveCommit() string {
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if rev := vcsSetting(info, "vcs.revision"); rev != "" {
			return rev
		}
	}
	return "unknown"
}

func vcsSetting(info *debug.BuildInfo, key string) string {
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// Short returns "v1.2.3 (abcdef0)" or just the version when no commit is known.
func (i Info) Short() string {
	if i.Commit == "unknown" || len(i.Commit) < 7 {
		return i.Version
	}
	if strings.HasPrefix(i.Version, "dev") {
		return "dev-" + i.Commit[:7]
	}
	return fmt.Sprintf("%s (%s)", i.Version, i.Commit[:7])
}

// Detailed returns one "Key: value" line per known field.
func (i Info) Detailed() string {
	lines := []string{"Version: " + i.Version}
	if i.Commit != "unknown" {
		lines = append(lines, "Commit: "+i.Commit)
	}
	if !i.BuiltAt.IsZero() {
		lines = append(lines, "Built: "+i.BuiltAt.Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+i.GoVersion, "Platform: "+i.Platform)
	return strings.Join(lines, "\n")
}

func parseBuildTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
