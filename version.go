package uvlink

import (
	"fmt"
	"regexp"
)

// LinkVersion is the version of this client library, reported by Link.Version.
const LinkVersion = "1.2.0"

// Version represents an application version such as RizomUV "2022.2" or a
// library version such as "1.2.0". Minor and Patch may be -1 if not specified
// (e.g., "2023" parses as {2023, -1, -1}).
type Version struct {
	// Major is the major version number (the release year for RizomUV).
	Major int

	// Minor is the minor version number (-1 if not specified).
	Minor int

	// Patch is the patch version number (-1 if not specified).
	Patch int
}

// MinimumRizomUVVersion is the oldest standalone release that accepts the
// "-id <port>" control channel argument.
var MinimumRizomUVVersion = Version{Major: 2022, Minor: 2, Patch: -1}

// ParseVersion parses a version string into a Version struct.
// Accepts formats: "X.Y.Z", "X.Y", or "X". Any trailing text is ignored.
//
// Examples:
//   - "2023.1.54" -> {2023, 1, 54}
//   - "2022.2" -> {2022, 2, -1}
//   - "2024" -> {2024, -1, -1}
func ParseVersion(versionStr string) (Version, error) {
	version := Version{
		Minor: -1,
		Patch: -1,
	}
	_, err := fmt.Sscanf(versionStr, "%d.%d.%d", &version.Major, &version.Minor, &version.Patch)
	if err != nil {
		version.Minor, version.Patch = -1, -1
		_, err = fmt.Sscanf(versionStr, "%d.%d", &version.Major, &version.Minor)
		if err != nil {
			version.Minor = -1
			_, err = fmt.Sscanf(versionStr, "%d", &version.Major)
			if err != nil {
				return Version{}, fmt.Errorf("error parsing version: %w", err)
			}
		}
	}
	if version.Major < 0 || version.Minor < -1 || version.Patch < -1 {
		return Version{}, fmt.Errorf("invalid version: %s", versionStr)
	}
	return version, nil
}

var embeddedVersion = regexp.MustCompile(`20\d\d\.\d+(\.\d+)?`)

// ParseRizomUVVersion extracts the release number from strings such as
// "RizomUV VS RS 2023.1", "RizomUV 2022.2.app" or "2024.0.12".
func ParseRizomUVVersion(s string) (Version, error) {
	m := embeddedVersion.FindString(s)
	if m == "" {
		return Version{}, fmt.Errorf("invalid version string: %s", s)
	}
	return ParseVersion(m)
}

// Compare returns -1 if v < other, 0 if v == other, or 1 if v > other.
// Comparison is done component by component (major, then minor, then patch).
func (v *Version) Compare(other Version) int {
	switch {
	case v.Major != other.Major:
		return sign(v.Major - other.Major)
	case v.Minor != other.Minor:
		return sign(v.Minor - other.Minor)
	default:
		return sign(v.Patch - other.Patch)
	}
}

func sign(n int) int {
	if n > 0 {
		return 1
	}
	if n < 0 {
		return -1
	}
	return 0
}

// Supported reports whether v is at least MinimumRizomUVVersion.
func (v *Version) Supported() bool {
	return v.Compare(MinimumRizomUVVersion) >= 0
}

// String returns the version as a string, omitting unspecified components.
// Examples: "2023.1.54", "2022.2", "2024"
func (v *Version) String() string {
	if v.Patch != -1 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	if v.Minor != -1 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d", v.Major)
}

// MinorString returns the version as "major.minor" (e.g., "2022.2").
// Used for registry keys and application bundle names.
func (v *Version) MinorString() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
