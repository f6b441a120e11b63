// Package config exposes build metadata stamped into LogWarden binaries.
package config

import (
	"fmt"
	"runtime"
)

// Stamped by the linker, e.g.
//
//	go build -ldflags "-X github.com/logwarden/logwarden/pkg/config.Version=v1.2.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetBuildInfo combines the stamped values with runtime details.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// VersionString renders a one-line human-readable version.
func VersionString() string {
	return fmt.Sprintf("logwarden %s (commit %s, built %s, %s)",
		Version, Commit, BuildTime, runtime.Version())
}
