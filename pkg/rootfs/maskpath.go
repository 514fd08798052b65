package rootfs

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// roProcPaths are bind-mounted read-only over themselves, preserving their
// content but making it immutable: a container can still read sysrq state,
// host interrupts, or bus info, but cannot write or remount them.
var roProcPaths = []string{"sysrq-trigger", "irq", "bus"}

// restrictProc hardens Root/proc per spec §4.2 step 4. nonRoot additionally
// masks /proc/sys, mirroring the original's "privileged" exemption.
func restrictProc(root string, nonRoot bool) error {
	proc := filepath.Join(root, "proc")
	for _, p := range roProcPaths {
		if err := selfBindReadOnly(filepath.Join(proc, p)); err != nil {
			return err
		}
	}
	if err := bindNullOver(filepath.Join(proc, "kcore")); err != nil {
		return err
	}
	if nonRoot {
		if err := maskPath(filepath.Join(proc, "sys")); err != nil {
			return err
		}
	}
	return nil
}

// selfBindReadOnly bind-mounts path onto itself and remounts it read-only,
// the same self-bind pattern roproc/ChildRestrictProc uses for
// sysrq-trigger, irq and bus: content stays visible, but immutable.
func selfBindReadOnly(path string) error {
	if err := unix.Mount(path, path, "", unix.MS_BIND, ""); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := unix.Mount("", path, "", unix.MS_REMOUNT|unix.MS_BIND|unix.MS_RDONLY, ""); err != nil {
		return err
	}
	return nil
}

// maskPath bind-mounts /dev/null over path if it is a file, or a read-only
// tmpfs if it is a directory. Adapted from the teacher's
// container_init_linux.go maskPath.
func maskPath(path string) error {
	if err := unix.Mount("/dev/null", path, "", unix.MS_BIND, ""); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if errors.Is(err, unix.ENOTDIR) {
			return unix.Mount("tmpfs", path, "tmpfs", unix.MS_RDONLY, "")
		}
		return err
	}
	return nil
}

// bindNullOver masks a single file path (e.g. /proc/kcore) with /dev/null,
// tolerating a missing source path.
func bindNullOver(path string) error {
	if err := unix.Mount("/dev/null", path, "", unix.MS_BIND, ""); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
