package version

import (
	"fmt"
	"runtime/debug"
)

var (
	tag       = "dev" // set via ldflags
	commit    = "123abc"
	buildTime = "now"
)

const (
	releaseURL = "https://github.com/noot-app/nutrition-log-mcp-server/releases/tag/%s"
	template   = "%s (%s) built at %s\n" + releaseURL
)

// buildInfoReader is a function type that can be mocked in tests
var buildInfoReader = debug.ReadBuildInfo

// resolve returns commit and build time, preferring ldflags over VCS info
func resolve() (string, string) {
	currentCommit := commit
	currentDate := buildTime

	info, ok := buildInfoReader()
	if !ok || info == nil {
		return currentCommit, currentDate
	}
	for _, setting := range info.Settings {
		switch {
		case setting.Key == "vcs.revision" && commit == "123abc":
			currentCommit = setting.Value
		case setting.Key == "vcs.time" && buildTime == "now":
			currentDate = setting.Value
		}
	}
	return currentCommit, currentDate
}

// String is the full multi-line version banner
func String() string {
	currentCommit, currentDate := resolve()
	return fmt.Sprintf(template, tag, currentCommit, currentDate, tag)
}

// Short is the release tag only
func Short() string {
	return tag
}

// UserAgent identifies this server on outbound HTTP requests
func UserAgent() string {
	return "nutrition-log-mcp-server/" + tag
}
