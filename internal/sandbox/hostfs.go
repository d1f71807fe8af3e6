package sandbox

import (
	"os"
	"path/filepath"
)

// HostProber reports live host filesystem state used to compute the optional
// bind mounts of an isolation plan. Implementations must probe fresh on every
// call so results reflect current host state.
type HostProber interface {
	// PathExists reports whether a host path exists.
	PathExists(path string) bool
	// IconCursorDirs lists every "cursors" directory found one level under
	// baseDir. The result is a set: enumeration order is filesystem
	// dependent and not guaranteed.
	IconCursorDirs(baseDir string) []string
}

// OSProber is the live host filesystem implementation of HostProber.
type OSProber struct{}

func (OSProber) PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSProber) IconCursorDirs(baseDir string) []string {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil
	}

	var dirs []string
	for _, entry := range entries {
		cursorDir := filepath.Join(baseDir, entry.Name(), "cursors")
		info, err := os.Stat(cursorDir)
		if err == nil && info.IsDir() {
			dirs = append(dirs, cursorDir)
		}
	}

	return dirs
}
