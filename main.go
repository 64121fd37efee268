package main

import (
	"runtime/debug"

	"github.com/marcus/mb/cmd"
)

// Version is injected at release time with -ldflags "-X main.Version=v1.2.3".
var Version = "dev"

// resolveVersion prefers an injected version, then the module version
// recorded by `go install mb@vX`, then a devel+<rev>[+dirty] string built
// from VCS stamping.
func resolveVersion(injected string) string {
	if injected != "" && injected != "dev" {
		return injected
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return injected
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	rev := settings["vcs.revision"]
	if rev == "" {
		return injected
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	v := "devel+" + rev
	if settings["vcs.modified"] == "true" {
		v += "+dirty"
	}
	return v
}

func main() {
	cmd.SetVersion(resolveVersion(Version))
	cmd.Execute()
}
