package uvlink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateVersions(t *testing.T) {
	versions := candidateVersions()

	require.NotEmpty(t, versions)
	assert.Equal(t, "2029.10", versions[0].String())
	assert.Equal(t, "2022.2", versions[len(versions)-1].String())
	// 7 full years of 11 minors, plus 2022.2 to 2022.10
	assert.Len(t, versions, 7*11+9)

	for i := 1; i < len(versions); i++ {
		assert.Equal(t, 1, versions[i-1].Compare(versions[i]), "not newest first at %d", i)
	}
}

func fakeInstall(t *testing.T, release string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "RizomUV "+release)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	exe := filepath.Join(dir, executableName)
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	return dir
}

func TestFindInstallationExplicitDir(t *testing.T) {
	dir := fakeInstall(t, "2023.1")

	inst, err := FindInstallation(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, executableName), inst.Executable)
	assert.Equal(t, dir, inst.Dir)
	assert.Equal(t, "2023.1", inst.Version.String())
}

func TestFindInstallationExplicitFile(t *testing.T) {
	dir := fakeInstall(t, "2022.2")

	inst, err := FindInstallation(filepath.Join(dir, executableName))
	require.NoError(t, err)
	assert.Equal(t, dir, inst.Dir)
}

func TestFindInstallationEnv(t *testing.T) {
	dir := fakeInstall(t, "2024.0")
	t.Setenv(EnvInstallPath, dir)

	path, err := InstallPath()
	require.NoError(t, err)
	assert.Equal(t, dir, path)
}

func TestFindInstallationMissing(t *testing.T) {
	_, err := FindInstallation(filepath.Join(t.TempDir(), "nowhere"))
	assert.ErrorIs(t, err, ErrNotInstalled)

	// a directory without the executable
	_, err = FindInstallation(t.TempDir())
	assert.ErrorIs(t, err, ErrNotInstalled)
}
