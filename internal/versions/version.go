package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const unknown = "unknown"

// Build information, overridden with -ldflags at release time.
var (
	Version   = "dev"
	Commit    = unknown
	BuildDate = unknown
)

// BuildInfo describes the running contract-promoter binary
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetBuildInfo returns the build information of the running binary
func GetBuildInfo() BuildInfo {
	return buildInfo(Version, Commit, BuildDate, readVCS)
}

// readVCS returns the VCS revision and time embedded by the Go toolchain, if any.
func readVCS() (revision, at string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			at = s.Value
		}
	}
	return revision, at
}

func buildInfo(version, commit, buildDate string, vcs func() (string, string)) BuildInfo {
	if version == "dev" {
		revision, at := vcs()
		if commit == unknown && revision != "" {
			commit = revision
		}
		if buildDate == unknown && at != "" {
			buildDate = at
		}
		version = fmt.Sprintf("build-%.8s", commit)
	}

	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
