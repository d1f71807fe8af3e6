package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
)

// mountsTarget is the kernel pseudo-file the guest mount table must point at
// so mount-aware tools work inside the sandbox.
const mountsTarget = "/proc/self/mounts"

// RepairMountTable ensures <rootfs>/etc/mtab is a symlink to /proc/self/mounts.
// It is idempotent: a correct symlink is left untouched, anything else at that
// path is replaced, and a missing etc directory is created first.
func RepairMountTable(rootfsDir string) error {
	mtabPath := filepath.Join(rootfsDir, "etc", "mtab")

	if target, err := os.Readlink(mtabPath); err == nil && target == mountsTarget {
		return nil
	}

	if err := os.Remove(mtabPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not remove %q: %w", mtabPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(mtabPath), 0755); err != nil {
		return fmt.Errorf("could not create %q: %w", filepath.Dir(mtabPath), err)
	}

	if err := os.Symlink(mountsTarget, mtabPath); err != nil {
		return fmt.Errorf("could not create mtab symlink: %w", err)
	}

	return nil
}
