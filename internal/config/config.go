// Package config loads the launch engine's YAML configuration file into a
// typed struct, and exposes the narrow subset of options the launch
// package needs through a dotted-key accessor (spec §6).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultTmpDir = "/var/lib/launchd/tmp"

// Container holds container-wide defaults.
type Container struct {
	TmpDir string `yaml:"tmp_dir"`
}

// Log holds logging options.
type Log struct {
	Verbose bool `yaml:"verbose"`
}

// Network holds network-subsystem defaults.
type Network struct {
	Enabled bool `yaml:"enabled"`
	Debug   bool `yaml:"debug"`
}

// Config is the top-level document, one section per concern.
type Config struct {
	Container Container `yaml:"container"`
	Log       Log       `yaml:"log"`
	Network   Network   `yaml:"network"`
}

// Load reads and parses path, filling in defaults for anything the
// document leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Container.TmpDir == "" {
		cfg.Container.TmpDir = defaultTmpDir
	}
}

// Get looks up a dotted key (e.g. "network.enabled") and renders its value
// as a string. This is the one narrow surface launch.ConfigAccessor needs,
// so callers outside this package never depend on Config's shape directly.
func (c *Config) Get(key string) (string, bool) {
	switch key {
	case "container.tmp_dir":
		return c.Container.TmpDir, true
	case "log.verbose":
		return strconv.FormatBool(c.Log.Verbose), true
	case "network.enabled":
		return strconv.FormatBool(c.Network.Enabled), true
	case "network.debug":
		return strconv.FormatBool(c.Network.Debug), true
	default:
		return "", false
	}
}

// GetBool is Get plus a strconv.ParseBool, for the three boolean options.
func (c *Config) GetBool(key string) (bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return false, fmt.Errorf("config: unknown key %q", key)
	}
	return strconv.ParseBool(v)
}

// Keys lists the dotted keys Get understands, for diagnostics.
func Keys() []string {
	return []string{"container.tmp_dir", "log.verbose", "network.enabled", "network.debug"}
}

// ValidateKey reports whether key is one Get recognizes, joining the known
// set into the error message when it is not.
func ValidateKey(key string) error {
	for _, k := range Keys() {
		if k == key {
			return nil
		}
	}
	return fmt.Errorf("config: unknown key %q, want one of [%s]", key, strings.Join(Keys(), ", "))
}
