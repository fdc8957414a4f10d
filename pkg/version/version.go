// Package version reports which direxpo build is running. /api/health and the version
// command both read it.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X 'direxpo/pkg/version.Version=1.2.3' -X ...Commit=... -X ...BuildTime=...".
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// Info is the build description served by /api/health.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"commit"`
	BuildTime string `json:"buildTime"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build description. Commit and build time fall back to the VCS stamp
// the go command embeds when ldflags did not set them.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	if info.GitCommit == "" {
		info.GitCommit = "none"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

// ShortCommit is the first 7 characters of the commit hash.
func (i Info) ShortCommit() string {
	if len(i.GitCommit) > 7 {
		return i.GitCommit[:7]
	}
	return i.GitCommit
}

func (i Info) String() string {
	commit := i.ShortCommit()
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("direxpo version %s (commit: %s) built at %s with %s on %s",
		i.Version, commit, i.BuildTime, i.GoVersion, i.Platform)
}
