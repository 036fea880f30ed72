package host_test

import (
	"testing"

	"github.com/chaifeng/ghri-go/pkg/host"
	"github.com/chaifeng/ghri-go/pkg/host/hosttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPathUnder_StringPrefixIsNotEnough(t *testing.T) {
	h := hosttest.New()
	assert.False(t, host.IsPathUnder(h, "/foo-extra", "/foo"))
	assert.True(t, host.IsPathUnder(h, "/foo/bar", "/foo"))
	assert.True(t, host.IsPathUnder(h, "/foo", "/foo"))
	assert.False(t, host.IsPathUnder(h, "/foobar", "/foo"))
}

func TestIsPathUnder_ResolvesSymlinks(t *testing.T) {
	h := hosttest.New()
	require.NoError(t, h.MkdirAll("/root/owner/repo/v1", 0o755))
	require.NoError(t, h.Symlink("v1", "/root/owner/repo/current"))

	assert.True(t, host.IsPathUnder(h, "/root/owner/repo/current", "/root/owner/repo"))
}

func TestRelativePathFromDir(t *testing.T) {
	assert.Equal(t, "v1/tool", host.RelativePathFromDir("/root/owner/repo", "/root/owner/repo/v1/tool"))
}

func TestJoinAbsoluteAware(t *testing.T) {
	assert.Equal(t, "/abs/path", host.JoinAbsoluteAware("/base/dir", "/abs/path"))
	assert.Equal(t, "/base/dir/rel", host.JoinAbsoluteAware("/base/dir", "rel"))
}
