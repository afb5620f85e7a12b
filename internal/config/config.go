// Package config loads uvlink's command-line configuration from a YAML
// file, a .env file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/richinsley/uvlink"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing default file
// is not an error.
const DefaultPath = "uvlink.yaml"

// Environment overrides.
const (
	EnvPortMin        = "UVLINK_PORT_MIN"
	EnvPortMax        = "UVLINK_PORT_MAX"
	EnvConnectTimeout = "UVLINK_CONNECT_TIMEOUT"
	EnvCallTimeout    = "UVLINK_CALL_TIMEOUT"
	EnvInstances      = "UVLINK_INSTANCES"
)

// Config holds the CLI configuration.
type Config struct {
	// Executable overrides installation discovery (file or directory).
	Executable string `yaml:"executable"`

	Ports PortsConfig `yaml:"ports"`

	// Durations use Go syntax ("90s", "2m"). Empty means the library default.
	ConnectTimeout string `yaml:"connect_timeout"`
	CallTimeout    string `yaml:"call_timeout"`
	GracePeriod    string `yaml:"grace_period"`

	// LaunchArgs are passed to the application after "-id <port>".
	LaunchArgs []string `yaml:"launch_args"`

	Batch BatchConfig `yaml:"batch"`

	Logging LoggingConfig `yaml:"logging"`
}

// PortsConfig is the range scanned for a free control port.
type PortsConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// BatchConfig tunes the batch and watch commands.
type BatchConfig struct {
	// Instances is how many application instances run side by side. Each
	// instance takes a seat on a floating license.
	Instances int `yaml:"instances"`

	// Pack runs Pack after Unfold.
	Pack bool `yaml:"pack"`

	// Suffix is appended to output file names before the extension.
	Suffix string `yaml:"suffix"`
}

// LoggingConfig selects the log level ("debug", "info", "warn", "error").
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ports: PortsConfig{
			Min: uvlink.DefaultPortMin,
			Max: uvlink.DefaultPortMax,
		},
		ConnectTimeout: uvlink.DefaultConnectTimeout.String(),
		GracePeriod:    uvlink.DefaultGracePeriod.String(),
		Batch: BatchConfig{
			Instances: 1,
			Pack:      true,
			Suffix:    "_uv",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path reads DefaultPath if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads environment variables from path. Missing files are ignored.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(uvlink.EnvInstallPath); v != "" {
		c.Executable = v
	}
	for _, o := range []struct {
		name string
		dst  *int
	}{
		{EnvPortMin, &c.Ports.Min},
		{EnvPortMax, &c.Ports.Max},
		{EnvInstances, &c.Batch.Instances},
	} {
		v := os.Getenv(o.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", o.name, err)
		}
		*o.dst = n
	}
	if v := os.Getenv(EnvConnectTimeout); v != "" {
		c.ConnectTimeout = v
	}
	if v := os.Getenv(EnvCallTimeout); v != "" {
		c.CallTimeout = v
	}
	return nil
}

// Validate checks ranges and duration syntax.
func (c *Config) Validate() error {
	if c.Ports.Min < 1 || c.Ports.Max > 65535 || c.Ports.Min > c.Ports.Max {
		return fmt.Errorf("invalid port range %d-%d", c.Ports.Min, c.Ports.Max)
	}
	if c.Batch.Instances < 1 {
		return fmt.Errorf("batch.instances must be at least 1, got %d", c.Batch.Instances)
	}
	for name, v := range map[string]string{
		"connect_timeout": c.ConnectTimeout,
		"call_timeout":    c.CallTimeout,
		"grace_period":    c.GracePeriod,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

// LinkOptions translates the configuration into uvlink options.
func (c *Config) LinkOptions() []uvlink.Option {
	connect, _ := parseDuration(c.ConnectTimeout)
	call, _ := parseDuration(c.CallTimeout)
	grace, _ := parseDuration(c.GracePeriod)

	opts := []uvlink.Option{
		uvlink.WithPortRange(c.Ports.Min, c.Ports.Max),
		uvlink.WithConnectTimeout(connect),
		uvlink.WithCallTimeout(call),
		uvlink.WithGracePeriod(grace),
	}
	if c.Executable != "" {
		opts = append(opts, uvlink.WithExecutable(c.Executable))
	}
	if len(c.LaunchArgs) > 0 {
		opts = append(opts, uvlink.WithLaunchArgs(c.LaunchArgs...))
	}
	return opts
}
