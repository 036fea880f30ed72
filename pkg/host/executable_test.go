package host_test

import (
	"runtime"
	"testing"

	"github.com/chaifeng/ghri-go/pkg/host"
	"github.com/stretchr/testify/assert"
)

func TestIsNativeExecutable_ELF(t *testing.T) {
	data := []byte{0x7f, 'E', 'L', 'F', 0x02, 0x01}
	if runtime.GOOS == "linux" {
		assert.True(t, host.IsNativeExecutable(data))
	} else {
		assert.False(t, host.IsNativeExecutable(data))
	}
}

func TestIsNativeExecutable_MachO(t *testing.T) {
	data := []byte{0xfe, 0xed, 0xfa, 0xcf, 0x00}
	if runtime.GOOS == "darwin" {
		assert.True(t, host.IsNativeExecutable(data))
	} else {
		assert.False(t, host.IsNativeExecutable(data))
	}
}

func TestIsNativeExecutable_Script(t *testing.T) {
	data := []byte("#!/bin/sh\necho hi\n")
	assert.False(t, host.IsNativeExecutable(data))
}

func TestIsNativeExecutable_TooShort(t *testing.T) {
	assert.False(t, host.IsNativeExecutable([]byte{0x7f}))
}
