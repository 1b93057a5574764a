package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Overridden at link time:
//
//	go build -ldflags "-X github.com/soyeahso/rewardbot/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/rewardbot/internal/version.Commit=abc123
//	  -X github.com/soyeahso/rewardbot/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromVCS(bi.Settings)
	}
}

// fillFromVCS uses the toolchain's stamped VCS settings for values ldflags left unset.
func fillFromVCS(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" && s.Value != "" {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == "unknown" && s.Value != "" {
				Date = s.Value
			}
		}
	}
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("rewardbot %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on outbound requests to the backend services and
// generation providers.
func UserAgent() string {
	return "rewardbot/" + Version
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
