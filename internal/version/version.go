// Package version reports build metadata for the sitescrape binary.
//
// Release builds stamp the variables with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/sitescrape/internal/version.Version=1.2.0 -X github.com/jmylchreest/sitescrape/internal/version.Commit=$(git rev-parse HEAD)"
//
// Unstamped builds fall back to the module and VCS data embedded by the Go
// toolchain.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info is the structured build description printed by `sitescrape version`.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Modified  bool   `json:"modified" yaml:"modified"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get collects the version information.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = strings.TrimPrefix(bi.Main.Version, "v")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// String returns the short version, marked when built from a dirty tree.
func (i Info) String() string {
	if i.Modified {
		return i.Version + "-dirty"
	}
	return i.Version
}

// ShortCommit returns the first 12 characters of the commit.
func (i Info) ShortCommit() string {
	if len(i.Commit) > 12 {
		return i.Commit[:12]
	}
	return i.Commit
}

// Full returns a multi-line description.
func (i Info) Full() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "sitescrape %s\n", i)
	fmt.Fprintf(&sb, "  Commit:     %s\n", i.ShortCommit())
	fmt.Fprintf(&sb, "  Built:      %s\n", i.BuildDate)
	fmt.Fprintf(&sb, "  Go version: %s\n", i.GoVersion)
	fmt.Fprintf(&sb, "  OS/Arch:    %s", i.Platform)
	return sb.String()
}
