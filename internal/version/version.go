// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version provides build-time version information.
package version

import "fmt"

// Set via ldflags:
//
//	-X github.com/olegiv/plz-cms/internal/version.version=v1.2.3
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = ""
)

// Info contains build-time version information.
type Info struct {
	Version   string `json:"version"`   // Semantic version from git tags (e.g., "v1.2.3")
	GitCommit string `json:"gitCommit"` // Short git commit hash (e.g., "abc1234")
	BuildTime string `json:"buildTime,omitempty"`
}

// Get returns the version of the running binary.
func Get() Info {
	return Info{Version: version, GitCommit: gitCommit, BuildTime: buildTime}
}

// String formats i for the -version flag.
func (i Info) String() string {
	if i.BuildTime == "" {
		return fmt.Sprintf("plz %s (%s)", i.Version, i.GitCommit)
	}
	return fmt.Sprintf("plz %s (%s, built %s)", i.Version, i.GitCommit, i.BuildTime)
}
