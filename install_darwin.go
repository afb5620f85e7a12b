//go:build darwin

package uvlink

import (
	"fmt"
	"os"
	"path/filepath"
)

const executableName = "rizomuv"

// placeholderBundle is used when no versioned bundle is installed.
const placeholderBundle = "/Applications/RizomUV.app"

func bundleExecutable(bundle string) string {
	return filepath.Join(bundle, "Contents", "MacOS", executableName)
}

// platformInstallation probes versioned application bundles, newest first.
func platformInstallation() (*Installation, error) {
	for _, v := range candidateVersions() {
		exe := bundleExecutable(fmt.Sprintf("/Applications/RizomUV %s.app", v.MinorString()))
		if _, err := os.Stat(exe); err == nil {
			return newInstallation(exe, v), nil
		}
	}
	exe := bundleExecutable(placeholderBundle)
	if _, err := os.Stat(exe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	return newInstallation(exe, versionFromPath(exe)), nil
}
