package uvlink

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvInstallPath names the environment variable that overrides installation
// discovery. It may hold the executable itself or its directory.
const EnvInstallPath = "RIZOMUV_PATH"

// Installation describes a RizomUV standalone found on disk.
type Installation struct {
	// Executable is the full path to the application binary.
	Executable string

	// Dir is the directory holding the executable. The application is
	// started with this directory as its working directory.
	Dir string

	// Version is the release deduced from the registry key or install path.
	// Major is 0 when the release could not be determined.
	Version Version
}

// InstallPath returns the directory of the most recent installation.
func InstallPath() (string, error) {
	inst, err := FindInstallation("")
	if err != nil {
		return "", err
	}
	return inst.Dir, nil
}

// FindInstallation resolves the application executable.
//
// Resolution order:
//  1. explicit, when non-empty (a file or a directory containing the executable)
//  2. the RIZOMUV_PATH environment variable
//  3. the platform lookup (Windows registry, macOS application bundles,
//     a fixed placeholder path elsewhere)
func FindInstallation(explicit string) (*Installation, error) {
	if explicit != "" {
		return installationAt(explicit)
	}
	if p := os.Getenv(EnvInstallPath); p != "" {
		return installationAt(p)
	}
	return platformInstallation()
}

// installationAt builds an Installation from a user-supplied path.
func installationAt(p string) (*Installation, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	exe := p
	if info.IsDir() {
		exe = filepath.Join(p, executableName)
		if _, err := os.Stat(exe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
		}
	}
	return newInstallation(exe, versionFromPath(exe)), nil
}

func newInstallation(exe string, v Version) *Installation {
	abs, err := filepath.Abs(exe)
	if err == nil {
		exe = abs
	}
	return &Installation{
		Executable: exe,
		Dir:        filepath.Dir(exe),
		Version:    v,
	}
}

func versionFromPath(p string) Version {
	v, err := ParseRizomUVVersion(p)
	if err != nil {
		return Version{Minor: -1, Patch: -1}
	}
	return v
}

// candidateVersions lists every release probed by the platform lookup, newest
// first: 2029.10 down to 2022.2 inclusive.
func candidateVersions() []Version {
	var versions []Version
	for year := 2029; year >= 2022; year-- {
		for minor := 10; minor >= 0; minor-- {
			v := Version{Major: year, Minor: minor, Patch: -1}
			if !v.Supported() {
				continue
			}
			versions = append(versions, v)
		}
	}
	return versions
}
