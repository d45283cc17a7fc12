package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/petekp/claude-hud-sub008/pkg/models"
)

// Set with -ldflags "-X github.com/petekp/claude-hud-sub008/version.Version=...".
// Builds from `go install` fall back to the module build info.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info describes the running hud binary.
type Info struct {
	Version         string `json:"version"`
	Commit          string `json:"commit"`
	Modified        bool   `json:"modified,omitempty"`
	BuildDate       string `json:"build_date"`
	ProtocolVersion int    `json:"protocol_version"`
	GoVersion       string `json:"go_version"`
	Platform        string `json:"platform"`
}

func GetInfo() Info {
	info := Info{
		Version:         Version,
		Commit:          Commit,
		BuildDate:       BuildDate,
		ProtocolVersion: models.ProtocolVersion,
		GoVersion:       runtime.Version(),
		Platform:        runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	return info
}

func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" {
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
}

func (i Info) String() string {
	commit := i.Commit
	if i.Modified {
		commit += " (modified)"
	}
	return fmt.Sprintf(
		"Version:\t%s\nCommit:\t\t%s\nBuild Date:\t%s\nProtocol:\t%d\nGo Version:\t%s\nPlatform:\t%s",
		i.Version, commit, i.BuildDate, i.ProtocolVersion, i.GoVersion, i.Platform,
	)
}
