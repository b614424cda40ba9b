// Package version reports build metadata. Release builds stamp the
// variables below through -ldflags; development builds fall back to the
// module's embedded VCS information.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags "-X .../internal/version.Version=v1.2.0 ..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo bundles everything the version command and the health
// endpoint report.
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
}

// Get returns the effective version: the stamped one when present,
// otherwise whatever the VCS metadata offers, otherwise "dev".
func Get() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
		if rev := vcsSetting(info, "vcs.revision"); len(rev) >= 7 {
			return "dev-" + rev[:7]
		}
	}
	return "dev"
}

// Commit returns the stamped git commit, or the one recorded by the Go
// toolchain when the stamp is absent.
func Commit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if rev := vcsSetting(info, "vcs.revision"); rev != "" {
			return rev
		}
	}
	return "unknown"
}

// Short returns a display form like "v1.2.0 (abc1234)".
func Short() string {
	v, c := Get(), Commit()
	if c != "unknown" && len(c) >= 7 {
		if v == "dev" {
			return "dev-" + c[:7]
		}
		return fmt.Sprintf("%s (%s)", v, c[:7])
	}
	return v
}

// Info collects the full build report.
func Info() BuildInfo {
	return BuildInfo{
		Version:   Get(),
		GitCommit: Commit(),
		BuildTime: buildTime(),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Dirty reports whether the working tree had local modifications when
// the binary was built.
func Dirty() bool {
	if info, ok := debug.ReadBuildInfo(); ok {
		return vcsSetting(info, "vcs.modified") == "true"
	}
	return false
}

func buildTime() time.Time {
	if BuildTime == "" || BuildTime == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, BuildTime); err == nil {
			return t
		}
	}
	return time.Time{}
}

func vcsSetting(info *debug.BuildInfo, key string) string {
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
