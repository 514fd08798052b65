package rootfs

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// pivotOrChroot performs pivot_root(root, root/.old_root), falling back to
// a plain chroot when pivot_root fails (common when already running inside
// a chrooted or namespace-limited host, e.g. EINVAL because root's parent
// is itself "/"). Adapted from the teacher's initFileSystem pivot sequence.
func pivotOrChroot(root string) error {
	if err := pivotRoot(root); err != nil {
		return unix.Chroot(root)
	}
	return nil
}

func pivotRoot(root string) error {
	oldRoot := filepath.Join(root, ".old_root")
	if err := os.MkdirAll(oldRoot, 0o755); err != nil {
		return fmt.Errorf("rootfs: mkdir %s: %w", oldRoot, err)
	}
	if err := unix.PivotRoot(root, oldRoot); err != nil {
		return err
	}
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("rootfs: chdir /: %w", err)
	}
	const relOldRoot = "/.old_root"
	if err := unix.Unmount(relOldRoot, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("rootfs: unmount %s: %w", relOldRoot, err)
	}
	if err := os.Remove(relOldRoot); err != nil {
		return fmt.Errorf("rootfs: remove %s: %w", relOldRoot, err)
	}
	return nil
}
