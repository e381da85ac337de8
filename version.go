package ups

import (
	"fmt"

	"github.com/cruppstahl/ups/internal/engine"
)

// Version constants
const (
	// Major is the major version number
	Major = 0

	// Minor is the minor version number
	Minor = 1

	// Patch is the patch version number
	Patch = 0
)

// VersionInfo contains binding and engine version information.
type VersionInfo struct {
	Major    uint32
	Minor    uint32
	Patch    uint32
	Engine   [3]uint32
	Describe string
}

// Version returns the version string of ups.
func Version() string {
	v := GetVersionInfo()
	return fmt.Sprintf("ups %d.%d.%d (engine %d.%d.%d)",
		v.Major, v.Minor, v.Patch, v.Engine[0], v.Engine[1], v.Engine[2])
}

// GetVersionInfo returns version information of the binding and of the
// engine it drives.
func GetVersionInfo() VersionInfo {
	major, minor, rev := engine.Default().Version()
	return VersionInfo{
		Major:    Major,
		Minor:    Minor,
		Patch:    Patch,
		Engine:   [3]uint32{major, minor, rev},
		Describe: fmt.Sprintf("v%d.%d.%d", Major, Minor, Patch),
	}
}
