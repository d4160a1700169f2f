// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version carries the build metadata injected via ldflags.
package version

import "fmt"

// Info is the build metadata of the running binary.
type Info struct {
	Version   string // git tag, e.g. "v1.2.3"
	GitCommit string // short commit hash
	BuildTime string // RFC3339
}

// Release returns Version, or "dev" for builds without ldflags.
func (i Info) Release() string {
	if i.Version == "" {
		return "dev"
	}
	return i.Version
}

// String formats i for -version output and the startup log.
func (i Info) String() string {
	commit, built := i.GitCommit, i.BuildTime
	if commit == "" {
		commit = "unknown"
	}
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("ocms-nav %s (commit %s, built %s)", i.Release(), commit, built)
}
