package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaifeng/ghri-go/pkg/config"
)

func TestPath(t *testing.T) {
	getenv := func(string) string { return "" }
	assert.Equal(t, filepath.Join("/home/u", ".config", "ghri", "config.yaml"), config.Path(getenv, "/home/u"))

	getenvXDG := func(k string) string {
		if k == "XDG_CONFIG_HOME" {
			return "/xdg"
		}
		return ""
	}
	assert.Equal(t, filepath.Join("/xdg", "ghri", "config.yaml"), config.Path(getenvXDG, "/home/u"))
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, &config.Config{}, cfg)
}

func TestLoadParsesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "install_root: /opt/ghri\nprovider_kind: github\nfilters:\n  - \"*linux*amd64*\"\n  - \"*.tar.gz\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/ghri", cfg.InstallRoot)
	assert.Equal(t, "github", cfg.ProviderKind)
	assert.Equal(t, []string{"*linux*amd64*", "*.tar.gz"}, cfg.Filters)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("install_root: [unterminated"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestResolveProviderKindEmpty(t *testing.T) {
	var cfg *config.Config
	kind, err := cfg.ResolveProviderKind()
	require.NoError(t, err)
	assert.Nil(t, kind)

	cfg = &config.Config{}
	kind, err = cfg.ResolveProviderKind()
	require.NoError(t, err)
	assert.Nil(t, kind)
}

func TestResolveProviderKindInvalid(t *testing.T) {
	cfg := &config.Config{ProviderKind: "bogus"}
	_, err := cfg.ResolveProviderKind()
	assert.Error(t, err)
}
