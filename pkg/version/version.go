// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is the release tag of the running binary.
var Version = "dev"

// Commit is the git hash the binary was built from.
var Commit = "<unknown>"

// Date is the build timestamp.
var Date = ""

// String renders version, commit and, when stamped, date on one line.
func String() string {
	commit := Commit
	if commit == "<unknown>" {
		commit = vcsRevision()
	}

	if Date == "" {
		return fmt.Sprintf("sasspipe %s (%s)", Version, commit)
	}

	return fmt.Sprintf("sasspipe %s (%s, built %s)", Version, commit, Date)
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Commit
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			return setting.Value
		}
	}

	return Commit
}
