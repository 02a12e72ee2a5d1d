// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package info provides build-time version information for the agent.
package info

import (
	"runtime"
	"runtime/debug"
)

var (
	// gitCommit is set at build time via ldflags
	gitCommit = "unknown"
	// version is set at build time via ldflags
	version = "dev"
)

// GitCommit returns the git commit hash at build time. Without ldflags
// the VCS revision recorded by the toolchain is used.
func GitCommit() string {
	if gitCommit != "unknown" {
		return gitCommit
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return gitCommit
}

// Version returns the version string at build time. Without ldflags the
// module version is used when the binary was installed with go install.
func Version() string {
	if version != "dev" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return version
}

// GetInfo returns a struct with all build information.
func GetInfo() Info {
	return Info{
		Version:   Version(),
		GitCommit: GitCommit(),
		GoVersion: runtime.Version(),
	}
}

// Info contains build-time version information.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}
