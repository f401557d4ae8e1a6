package utils

import (
	"fmt"
	"runtime/debug"
)

// Version is the semantic version of the hub, overridable at link time.
//
//nolint:gochecknoglobals // Set via -ldflags "-X pumphub/pkg/utils.Version=..."
var Version = "0.1.0"

// getVCSInfo extracts commit hash, build time and dirty flag from build info.
func getVCSInfo() (commit, buildTime, modified string) {
	commit = "unknown"
	buildTime = "unknown"
	modified = "false"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, buildTime, modified
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) > 7 {
				commit = commit[:7]
			}
		case "vcs.time":
			buildTime = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}

	return commit, buildTime, modified
}

// GetBuildVersion returns the full version string including build time.
func GetBuildVersion() string {
	commit, buildTime, modified := getVCSInfo()

	version := "v" + Version
	if modified == "true" {
		version += "-dirty"
	}

	return fmt.Sprintf("%s (%s) built at %s", version, commit, buildTime)
}

// GetVersionShort returns the version and commit without build time.
func GetVersionShort() string {
	commit, _, modified := getVCSInfo()

	version := "v" + Version
	if modified == "true" {
		version += "-dirty"
	}

	return fmt.Sprintf("%s (%s)", version, commit)
}

// GetBuildInfo returns build metadata as a flat map.
func GetBuildInfo() map[string]string {
	commit, buildTime, modified := getVCSInfo()

	result := map[string]string{
		"version":      Version,
		"commit":       commit,
		"build_time":   buildTime,
		"vcs_modified": modified,
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		result["go_version"] = info.GoVersion
	}

	return result
}
