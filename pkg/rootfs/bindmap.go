package rootfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// BindEntry is one TaskEnv.BindMap spec entry.
type BindEntry struct {
	Source string
	Dest   string
	Rdonly bool
}

// checkNoEscape enforces the BindMap invariant: realpath(root/dest) must
// remain within realpath(root). A symlink planted inside the container
// view (or along dest's own path) must not be able to redirect a bind
// mount outside the rootfs.
func checkNoEscape(root, dest string) error {
	rootReal, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("rootfs: resolve root %s: %w", root, err)
	}
	target := filepath.Join(root, dest)
	// The mount point itself may not exist yet; resolve as far as it does
	// and require the existing prefix stays inside rootReal.
	resolved, err := resolveExisting(target)
	if err != nil {
		return fmt.Errorf("rootfs: resolve bind dest %s: %w", dest, err)
	}
	if resolved != rootReal && !strings.HasPrefix(resolved, rootReal+string(filepath.Separator)) {
		return fmt.Errorf("rootfs: bind dest %s escapes root via symlink", dest)
	}
	return nil
}

// resolveExisting evaluates symlinks along the longest existing prefix of
// path, then rejoins the remaining (not-yet-created) components verbatim.
func resolveExisting(path string) (string, error) {
	if _, err := os.Lstat(path); err == nil {
		return filepath.EvalSymlinks(path)
	}
	parent, base := filepath.Split(filepath.Clean(path))
	if parent == "" || parent == path {
		return filepath.Clean(path), nil
	}
	resolvedParent, err := resolveExisting(filepath.Clean(parent))
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, base), nil
}

// ValidateBindMap enforces the symlink-escape invariant against entries
// for root, before any namespace is created. It is the supervisor-side
// precheck (spec §3 invariant, §8 scenario 3: "Start returns InvalidValue
// before any namespace is created") — applyBindMap below re-checks the
// same invariant from inside the init's own mount namespace, where root
// has already been bind-mounted onto itself and symlinks could in
// principle have changed underneath a concurrent launch.
func ValidateBindMap(root string, entries []BindEntry) error {
	if root == "" || root == "/" {
		return nil
	}
	for _, e := range entries {
		if err := checkNoEscape(root, e.Dest); err != nil {
			return err
		}
	}
	return nil
}

// applyBindMap bind-mounts every entry onto Root, enforcing the
// symlink-escape invariant first and clearing the nosuid/noexec/nodev
// flags a tmpfs-backed carrier implicitly applies to bind mounts beneath
// it (spec §4.2 step 5).
func applyBindMap(root string, entries []BindEntry) error {
	for _, e := range entries {
		if err := checkNoEscape(root, e.Dest); err != nil {
			return err
		}
		fi, err := os.Stat(e.Source)
		if err != nil {
			return fmt.Errorf("rootfs: stat bind source %s: %w", e.Source, err)
		}
		target := filepath.Join(root, e.Dest)
		flags := uintptr(unix.MS_BIND)
		m := Mount{Source: e.Source, Target: target, Flags: flags, SourceIsFile: !fi.IsDir()}
		if err := m.Mount(); err != nil {
			return err
		}
		remountFlags := uintptr(unix.MS_REMOUNT | unix.MS_BIND)
		if e.Rdonly {
			remountFlags |= unix.MS_RDONLY
		}
		if err := unix.Mount("", target, "", remountFlags, ""); err != nil {
			return fmt.Errorf("rootfs: remount bind %s: %w", target, err)
		}
	}
	return nil
}
