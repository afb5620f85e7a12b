//go:build !windows && !darwin

package uvlink

import (
	"fmt"
	"os"
)

const executableName = "rizomuv"

// placeholderExecutable is where a Linux build would be installed. No
// standalone is distributed for Linux; set RIZOMUV_PATH to point elsewhere.
const placeholderExecutable = "/opt/rizomuv/rizomuv"

func platformInstallation() (*Installation, error) {
	if _, err := os.Stat(placeholderExecutable); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	return newInstallation(placeholderExecutable, versionFromPath(placeholderExecutable)), nil
}
