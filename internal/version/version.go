// Package version reports build metadata for the mp binary. GoReleaser injects
// Version, Commit and Date via -ldflags; local builds keep the zero values.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// BuildInfo is the metadata printed by mp version.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata. A binary built with go install carries no
// ldflags, so its module version stands in for "dev".
func Get() BuildInfo {
	v := Version
	if v == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
	}
	return BuildInfo{
		Version:   v,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders b in the multi-line text form.
func (b BuildInfo) String() string {
	return fmt.Sprintf("mp version %s\ncommit: %s\nbuilt: %s\ngo: %s %s\n",
		b.Version, b.Commit, b.Date, b.GoVersion, b.Platform)
}

// Info returns the text printed by mp version.
func Info() string {
	return Get().String()
}
