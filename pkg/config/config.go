// Package config loads the optional process-wide defaults file: a flat
// YAML document supplying install root and default provider kind, each of
// which the CLI's flags can still override, plus a filters list that is
// parsed but not applied by any CLI command.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chaifeng/ghri-go/pkg/provider"
)

const fileName = "config.yaml"

// Config holds the file-layer defaults. Every field is optional; an absent
// file, or an absent field within a present file, leaves flags and
// environment variables as the sole source of truth.
type Config struct {
	InstallRoot  string   `yaml:"install_root,omitempty"`
	ProviderKind string   `yaml:"provider_kind,omitempty"`
	Filters      []string `yaml:"filters,omitempty"`
}

// Path returns the config file location: $XDG_CONFIG_HOME/ghri/config.yaml
// if XDG_CONFIG_HOME is set, else ~/.config/ghri/config.yaml.
func Path(getenv func(string) string, homeDir string) string {
	if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ghri", fileName)
	}
	return filepath.Join(homeDir, ".config", "ghri", fileName)
}

// Load reads and parses path, returning a zero-value Config (not an error)
// when the file does not exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &cfg, nil
}

// ResolveProviderKind parses the config's provider_kind, if set. An empty
// or absent value is not an error; callers fall back to the registry's
// default kind.
func (c *Config) ResolveProviderKind() (*provider.Kind, error) {
	if c == nil || c.ProviderKind == "" {
		return nil, nil
	}
	kind, err := provider.ParseKind(c.ProviderKind)
	if err != nil {
		return nil, fmt.Errorf("config provider_kind: %w", err)
	}
	return &kind, nil
}
