package version

import (
	"runtime"

	"github.com/Masterminds/semver/v3"
)

// Set at build time with -ldflags "-X".
var (
	Version   = "development"
	CommitSHA = "unknown"
)

type Info struct {
	Version   string
	CommitSHA string
	GoVersion string
	Os        string
	Arch      string
	// Release is false for builds whose version is not a semantic version,
	// such as local builds, and for prereleases.
	Release bool
}

func GetVersionInfo() *Info {
	return &Info{
		Version:   Version,
		CommitSHA: CommitSHA,
		GoVersion: runtime.Version(),
		Os:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Release:   isRelease(Version),
	}
}

func isRelease(v string) bool {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return false
	}
	return sv.Prerelease() == ""
}
