package host

import (
	"runtime"
)

// IsNativeExecutable reports whether the first bytes of data identify a
// binary native to the running kernel: ELF on Linux, Mach-O (including
// universal/fat binaries) on macOS. Anything else — scripts with a "#!"
// shebang, foreign-kernel binaries, PE binaries on a non-Windows host — is
// not eligible, per spec. Detection is magic-byte based, never extension or
// shebang based.
func IsNativeExecutable(data []byte) bool {
	switch runtime.GOOS {
	case "linux":
		return isELF(data)
	case "darwin":
		return isMachO(data)
	default:
		return false
	}
}

func isELF(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return data[0] == 0x7f && data[1] == 'E' && data[2] == 'L' && data[3] == 'F'
}

func isMachO(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	magic := [4]byte{data[0], data[1], data[2], data[3]}
	switch magic {
	case [4]byte{0xfe, 0xed, 0xfa, 0xce}, // 32-bit
		[4]byte{0xfe, 0xed, 0xfa, 0xcf},  // 64-bit
		[4]byte{0xce, 0xfa, 0xed, 0xfe},  // 32-bit swapped
		[4]byte{0xcf, 0xfa, 0xed, 0xfe},  // 64-bit swapped
		[4]byte{0xca, 0xfe, 0xba, 0xbe}: // universal/fat
		return true
	default:
		return false
	}
}
