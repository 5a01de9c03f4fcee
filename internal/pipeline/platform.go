package pipeline

import (
	"fmt"
	"strings"
)

// Platform is a build target platform.
type Platform string

// Supported platforms.
const (
	Osx64        Platform = "osx-64"
	OsxArm64     Platform = "osx-arm64"
	Win64        Platform = "win-64"
	LinuxAarch64 Platform = "linux-aarch64"
	Linux64      Platform = "linux-64"
)

// AllPlatforms lists every platform in fan-out order.
var AllPlatforms = []Platform{Osx64, OsxArm64, Win64, LinuxAarch64, Linux64}

var workflowAliases = map[Platform]string{
	LinuxAarch64: "linux-arm64",
}

var runnerLabels = map[Platform]string{
	Linux64:      "ubuntu-24.04",
	LinuxAarch64: "ubuntu-24.04-arm",
	Osx64:        "macos-13",
	OsxArm64:     "macos-14",
	Win64:        "windows-2019",
}

var platformGroups = map[string][]Platform{
	"all":   {Osx64, OsxArm64, Win64, LinuxAarch64, Linux64},
	"linux": {Linux64, LinuxAarch64},
	"osx":   {Osx64, OsxArm64},
	"win":   {Win64},
	"arm":   {LinuxAarch64, OsxArm64},
}

// WorkflowAlias is the name the platform goes by in workflow file names.
func (p Platform) WorkflowAlias() string {
	if a, ok := workflowAliases[p]; ok {
		return a
	}
	return string(p)
}

// RunnerLabel is the hosted runner image that builds the platform.
func (p Platform) RunnerLabel() string {
	return runnerLabels[p]
}

// ParsePlatform accepts a platform name or its workflow alias.
func ParsePlatform(s string) (Platform, error) {
	s = strings.TrimSpace(s)
	for _, p := range AllPlatforms {
		if s == string(p) || s == p.WorkflowAlias() {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// ExpandPlatforms resolves platform names and group names (all, linux, osx,
// win, arm) into a de-duplicated list, keeping first-seen order.
func ExpandPlatforms(names []string) ([]Platform, error) {
	var out []Platform
	seen := make(map[Platform]bool)
	add := func(p Platform) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, name := range names {
		if group, ok := platformGroups[strings.TrimSpace(name)]; ok {
			for _, p := range group {
				add(p)
			}
			continue
		}
		p, err := ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		add(p)
	}
	return out, nil
}
