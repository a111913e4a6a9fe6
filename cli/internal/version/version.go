// Package version holds the bugscope version string. Default is "dev"; release
// builds set it via: go build -ldflags "-X bugscope/cli/internal/version.Version=v1.0.0"
// Commit is the short git commit hash for dev builds.
package version

import "runtime"

// Version is the bugscope version. Set at build time for releases.
var Version = "dev"

// Commit is the short git commit hash (e.g. 7 chars). Set at build time for dev builds via ldflags.
var Commit = ""

// String returns the version string for display (--version, the HTTP health
// payload and history records). For dev builds with Commit set it returns
// "dev (abc1234)"; otherwise Version.
func String() string {
	if Version != "dev" || Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}

// BuildInfo is the version payload reported by the HTTP health endpoint.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
}

// Info returns the current BuildInfo. GoVersion comes from the running binary.
func Info() BuildInfo {
	return BuildInfo{Version: Version, Commit: Commit, GoVersion: runtime.Version()}
}
