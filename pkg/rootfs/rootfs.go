package rootfs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Config is the subset of TaskEnv the MountBuilder acts on, plus the
// resolved credential it needs for CreateCwd ownership.
type Config struct {
	NewMountNs bool
	Isolate    bool

	// ParentNsRoot, if non-empty, means ParentNs.Mnt has already been
	// entered by the caller; rootfs construction is skipped entirely and
	// only a chroot + chdir is performed (spec §4.2 step 3).
	ParentNsRoot string

	Root       string
	RootRdOnly bool

	Loop      string
	LoopDev   int
	LoopOwner LoopDeviceOwner

	BindMap []BindEntry
	BindDns bool

	Cwd       string
	CreateCwd bool

	UID, GID uint32
	// NonRoot additionally hardens /proc/sys; the init runs as root until
	// CredResolver drops privileges later, so this reflects the eventual
	// target credential, not the init's current uid.
	NonRoot bool
}

const defaultFlags = unix.MS_NOEXEC | unix.MS_NOSUID | unix.MS_NODEV

// Build composes the container's filesystem view per spec §4.2's mandated
// ordering and hands control back once the process is chdir'd into Cwd at
// the new root.
func Build(cfg Config) error {
	if cfg.NewMountNs {
		if err := remountSlave(); err != nil {
			return err
		}
	}
	if cfg.Isolate {
		if err := remountProc(); err != nil {
			return err
		}
	}

	if cfg.ParentNsRoot != "" {
		if err := unix.Chroot(cfg.ParentNsRoot); err != nil {
			return fmt.Errorf("rootfs: chroot %s: %w", cfg.ParentNsRoot, err)
		}
		return enterCwd(cfg)
	}

	if cfg.Root == "/" {
		return enterCwd(cfg)
	}

	if err := buildRoot(cfg); err != nil {
		return err
	}

	if err := applyBindMap(cfg.Root, cfg.BindMap); err != nil {
		return err
	}

	if cfg.RootRdOnly && cfg.Loop == "" {
		if err := remountReadOnly(cfg.Root, cfg.BindMap); err != nil {
			return err
		}
	}

	if err := pivotOrChroot(cfg.Root); err != nil {
		return fmt.Errorf("rootfs: pivot/chroot %s: %w", cfg.Root, err)
	}

	if err := unix.Mount("", "/", "", unix.MS_REMOUNT|unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("rootfs: remount / bind: %w", err)
	}

	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("rootfs: chdir /: %w", err)
	}
	if err := enterCwd(cfg); err != nil {
		return err
	}

	if cfg.NewMountNs {
		if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_SHARED, ""); err != nil {
			return fmt.Errorf("rootfs: remount / shared: %w", err)
		}
	}
	return nil
}

func remountSlave() error {
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_SLAVE, ""); err != nil {
		return fmt.Errorf("rootfs: remount / slave: %w", err)
	}
	return nil
}

func remountProc() error {
	if err := unix.Unmount("/proc", unix.MNT_DETACH); err != nil {
		return fmt.Errorf("rootfs: detach /proc: %w", err)
	}
	m := Mount{Source: "proc", Target: "/proc", FsType: "proc", Flags: defaultFlags}
	if err := m.Mount(); err != nil {
		return fmt.Errorf("rootfs: remount /proc: %w", err)
	}
	return nil
}

func buildRoot(cfg Config) error {
	owner := cfg.LoopOwner
	if owner == nil {
		owner = Loop
	}

	if cfg.Loop != "" {
		if err := mountLoop(owner, cfg.Loop, cfg.LoopDev, cfg.Root, cfg.RootRdOnly); err != nil {
			return err
		}
	} else {
		self := Mount{Source: cfg.Root, Target: cfg.Root, FsType: "none", Flags: unix.MS_BIND}
		if err := self.Mount(); err != nil {
			return err
		}
	}

	sysfs := Mount{Source: "sysfs", Target: cfg.Root + "/sys", FsType: "sysfs", Flags: defaultFlags | unix.MS_RDONLY}
	if err := sysfs.Mount(); err != nil {
		return err
	}
	proc := Mount{Source: "proc", Target: cfg.Root + "/proc", FsType: "proc", Flags: defaultFlags}
	if err := proc.Mount(); err != nil {
		return err
	}
	if err := restrictProc(cfg.Root, cfg.NonRoot); err != nil {
		return err
	}
	if err := mountDev(cfg.Root); err != nil {
		return err
	}
	if cfg.Loop != "" {
		if err := mountRun(cfg.Root); err != nil {
			return err
		}
	}
	if err := mountShm(cfg.Root); err != nil {
		return err
	}
	if cfg.BindDns {
		if err := bindDNS(cfg.Root); err != nil {
			return err
		}
	}
	return nil
}

func bindDNS(root string) error {
	for _, name := range []string{"hosts", "resolv.conf"} {
		m := Mount{
			Source: "/etc/" + name, Target: root + "/etc/" + name,
			Flags: unix.MS_BIND | unix.MS_RDONLY, SourceIsFile: true,
		}
		if err := m.Mount(); err != nil {
			return fmt.Errorf("rootfs: bind-dns %s: %w", name, err)
		}
	}
	return nil
}

// enterCwd performs the final chdir(Cwd), creating and chowning a private
// scratch directory first when CreateCwd is set. This supplements spec §3's
// TaskEnv.CreateCwd, which the distilled spec names but does not detail;
// behavior follows the original's TFolder-create-then-chown pattern.
func enterCwd(cfg Config) error {
	if cfg.Cwd == "" {
		return nil
	}
	if cfg.CreateCwd {
		if err := os.MkdirAll(cfg.Cwd, 0o755); err != nil {
			return fmt.Errorf("rootfs: create cwd %s: %w", cfg.Cwd, err)
		}
		if err := os.Chown(cfg.Cwd, int(cfg.UID), int(cfg.GID)); err != nil {
			return fmt.Errorf("rootfs: chown cwd %s: %w", cfg.Cwd, err)
		}
	}
	if err := os.Chdir(cfg.Cwd); err != nil {
		return fmt.Errorf("rootfs: chdir %s: %w", cfg.Cwd, err)
	}
	return nil
}
