package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/richinsley/uvlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uvlink.DefaultPortMin, cfg.Ports.Min)
	assert.Equal(t, uvlink.DefaultPortMax, cfg.Ports.Max)
	assert.Equal(t, "1m30s", cfg.ConnectTimeout)
	assert.Equal(t, 1, cfg.Batch.Instances)
	assert.True(t, cfg.Batch.Pack)
	assert.Equal(t, "_uv", cfg.Batch.Suffix)
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "uvlink.yaml", `
executable: /opt/RizomUV/rizomuv
ports:
  min: 6000
  max: 6009
call_timeout: 10m
launch_args: ["-cfi", "startup.lua"]
batch:
  instances: 3
  pack: false
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/RizomUV/rizomuv", cfg.Executable)
	assert.Equal(t, PortsConfig{Min: 6000, Max: 6009}, cfg.Ports)
	assert.Equal(t, "10m", cfg.CallTimeout)
	assert.Equal(t, "1m30s", cfg.ConnectTimeout, "unset keys keep their defaults")
	assert.Equal(t, []string{"-cfi", "startup.lua"}, cfg.LaunchArgs)
	assert.Equal(t, 3, cfg.Batch.Instances)
	assert.False(t, cfg.Batch.Pack)
	assert.Equal(t, "_uv", cfg.Batch.Suffix)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "uvlink.yaml", "ports:\n  min: 6000\n  max: 6009\n")
	t.Setenv(EnvPortMin, "7000")
	t.Setenv(EnvPortMax, "7100")
	t.Setenv(EnvInstances, "4")
	t.Setenv(EnvConnectTimeout, "2m")
	t.Setenv(uvlink.EnvInstallPath, "/custom/rizomuv")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, PortsConfig{Min: 7000, Max: 7100}, cfg.Ports)
	assert.Equal(t, 4, cfg.Batch.Instances)
	assert.Equal(t, "2m", cfg.ConnectTimeout)
	assert.Equal(t, "/custom/rizomuv", cfg.Executable)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv(EnvPortMin, "five thousand")
	_, err := Load(writeFile(t, "uvlink.yaml", ""))
	assert.ErrorContains(t, err, EnvPortMin)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "UVLINK_INSTANCES=2\n")
	// godotenv never overrides variables that are already set
	t.Setenv(EnvInstances, "")
	os.Unsetenv(EnvInstances)

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "2", os.Getenv(EnvInstances))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"inverted ports", func(c *Config) { c.Ports.Min, c.Ports.Max = 6000, 5000 }},
		{"port zero", func(c *Config) { c.Ports.Min = 0 }},
		{"port too high", func(c *Config) { c.Ports.Max = 70000 }},
		{"no instances", func(c *Config) { c.Batch.Instances = 0 }},
		{"bad duration", func(c *Config) { c.CallTimeout = "soon" }},
		{"negative duration", func(c *Config) { c.GracePeriod = "-1s" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLinkOptions(t *testing.T) {
	c := Default()
	assert.Len(t, c.LinkOptions(), 4)

	c.Executable = "/opt/rizomuv"
	c.LaunchArgs = []string{"-x"}
	opts := c.LinkOptions()
	assert.Len(t, opts, 6)

	link := uvlink.NewLink(opts...)
	defer link.Close()
	assert.NotEmpty(t, link.ID())
}
