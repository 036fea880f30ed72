package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaifeng/ghri-go/pkg/extract"
	"github.com/chaifeng/ghri-go/pkg/host/hosttest"
)

func TestIsArchive(t *testing.T) {
	assert.True(t, extract.IsArchive("tool-v1.0.0-linux-amd64.tar.gz"))
	assert.True(t, extract.IsArchive("tool.tgz"))
	assert.True(t, extract.IsArchive("tool.TAR.XZ"))
	assert.True(t, extract.IsArchive("tool.tar.bz2"))
	assert.True(t, extract.IsArchive("tool.zip"))
	assert.False(t, extract.IsArchive("tool-linux-amd64"))
}

func TestGetExtension(t *testing.T) {
	assert.Equal(t, ".tar.gz", extract.GetExtension("https://example.com/tool-v1.0.0.tar.gz?token=abc"))
	assert.Equal(t, ".zip", extract.GetExtension("https://example.com/tool.zip"))
	assert.Equal(t, ".exe", extract.GetExtension("https://example.com/tool.exe"))
}

func TestRelocate_FlattensSingleSubdirectory(t *testing.T) {
	h := hosttest.New()
	require.NoError(t, h.MkdirAll("/tmp/tool_temp_extract/tool-v1.0.0", 0o755))
	require.NoError(t, h.WriteFile("/tmp/tool_temp_extract/tool-v1.0.0/tool", []byte("bin"), 0o755))
	require.NoError(t, h.WriteFile("/tmp/tool_temp_extract/tool-v1.0.0/README.md", []byte("docs"), 0o644))
	require.NoError(t, h.MkdirAll("/tmp/tool", 0o755))

	require.NoError(t, extract.Relocate(h, "/tmp/tool_temp_extract", "/tmp/tool"))

	entries, err := h.ReadDir("/tmp/tool")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"tool", "README.md"}, names)
}

func TestRelocate_MovesAllChildrenWhenFlat(t *testing.T) {
	h := hosttest.New()
	require.NoError(t, h.MkdirAll("/tmp/tool_temp_extract", 0o755))
	require.NoError(t, h.WriteFile("/tmp/tool_temp_extract/tool", []byte("bin"), 0o755))
	require.NoError(t, h.WriteFile("/tmp/tool_temp_extract/LICENSE", []byte("mit"), 0o644))
	require.NoError(t, h.MkdirAll("/tmp/tool", 0o755))

	require.NoError(t, extract.Relocate(h, "/tmp/tool_temp_extract", "/tmp/tool"))

	entries, err := h.ReadDir("/tmp/tool")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"tool", "LICENSE"}, names)
}

func TestRelocate_MovesAllChildrenWhenMultipleTopLevelDirs(t *testing.T) {
	h := hosttest.New()
	require.NoError(t, h.MkdirAll("/tmp/tool_temp_extract/bin", 0o755))
	require.NoError(t, h.MkdirAll("/tmp/tool_temp_extract/share", 0o755))
	require.NoError(t, h.WriteFile("/tmp/tool_temp_extract/bin/tool", []byte("bin"), 0o755))
	require.NoError(t, h.MkdirAll("/tmp/tool", 0o755))

	require.NoError(t, extract.Relocate(h, "/tmp/tool_temp_extract", "/tmp/tool"))

	entries, err := h.ReadDir("/tmp/tool")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"bin", "share"}, names)
}

func TestRelocate_EmptyArchiveFails(t *testing.T) {
	h := hosttest.New()
	require.NoError(t, h.MkdirAll("/tmp/tool_temp_extract", 0o755))
	require.NoError(t, h.MkdirAll("/tmp/tool", 0o755))

	err := extract.Relocate(h, "/tmp/tool_temp_extract", "/tmp/tool")
	assert.Error(t, err)
}
