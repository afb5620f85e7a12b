//go:build windows

package uvlink

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const executableName = "rizomuv.exe"

// registryKeyPrefix is completed with the release, e.g. "2023.1".
const registryKeyPrefix = `SOFTWARE\Rizom Lab\RizomUV VS RS `

// platformInstallation reads the installer's registry entries under
// HKEY_LOCAL_MACHINE and returns the newest release found.
func platformInstallation() (*Installation, error) {
	for _, v := range candidateVersions() {
		exe, err := registryExecutable(v)
		if err != nil {
			continue
		}
		return newInstallation(exe, v), nil
	}
	return nil, fmt.Errorf("%w: no registry key %s*", ErrNotInstalled, registryKeyPrefix)
}

// registryExecutable returns the default value of the "rizomuv.exe" subkey
// of the given release's key.
func registryExecutable(v Version) (string, error) {
	path := registryKeyPrefix + v.MinorString() + `\` + executableName
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE)
	if err != nil {
		return "", err
	}
	defer key.Close()

	exe, _, err := key.GetStringValue("")
	if err != nil {
		return "", err
	}
	return exe, nil
}
