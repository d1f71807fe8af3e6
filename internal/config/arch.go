package config

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// goArchNames maps Go architecture names to Alpine machine names.
var goArchNames = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
	"386":   "x86",
	"arm":   "armv7",
}

// Arch returns the Alpine architecture name of the target rootfs. The
// ALPACK_ARCH and ARCH environment variables override detection, otherwise
// the kernel machine name is used.
func Arch() string {
	if v := lookupArchEnv(); v != "" {
		return v
	}

	uts := unix.Utsname{}
	if err := unix.Uname(&uts); err == nil {
		if machine := unix.ByteSliceToString(uts.Machine[:]); machine != "" {
			return machine
		}
	}

	if name, ok := goArchNames[runtime.GOARCH]; ok {
		return name
	}
	return runtime.GOARCH
}

func lookupArchEnv() string {
	for _, key := range []string{"ALPACK_ARCH", "ARCH"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
