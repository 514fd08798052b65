package rootfs

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// devNode is a standard character device: name plus its canonical
// (major, minor) pair, per Linux's LANANA device list.
type devNode struct {
	name         string
	major, minor uint32
}

var standardDevNodes = []devNode{
	{"null", 1, 3},
	{"zero", 1, 5},
	{"full", 1, 7},
	{"random", 1, 8},
	{"urandom", 1, 9},
}

// mountDev builds Root/dev: a small tmpfs carrier, a devpts instance, the
// five standard device nodes, and the conventional symlinks/placeholder
// that most userspace expects to find under /dev.
func mountDev(root string) error {
	dev := filepath.Join(root, "dev")
	tmpfs := Mount{
		Source: "tmpfs", Target: dev, FsType: "tmpfs",
		Flags: unix.MS_NOSUID | unix.MS_STRICTATIME,
		Data:  "mode=755,size=33554432",
	}
	if err := tmpfs.Mount(); err != nil {
		return err
	}

	pts := filepath.Join(dev, "pts")
	ptsMount := Mount{
		Source: "devpts", Target: pts, FsType: "devpts",
		Data: "newinstance,ptmxmode=0666,mode=620,gid=5",
	}
	if err := ptsMount.Mount(); err != nil {
		return err
	}

	for _, n := range standardDevNodes {
		path := filepath.Join(dev, n.name)
		rdev := int(unix.Mkdev(n.major, n.minor))
		if err := unix.Mknod(path, unix.S_IFCHR|0o666, rdev); err != nil {
			return fmt.Errorf("rootfs: mknod %s: %w", path, err)
		}
	}

	if err := os.Symlink("pts/ptmx", filepath.Join(dev, "ptmx")); err != nil {
		return fmt.Errorf("rootfs: symlink /dev/ptmx: %w", err)
	}
	if err := os.Symlink("/proc/self/fd", filepath.Join(dev, "fd")); err != nil {
		return fmt.Errorf("rootfs: symlink /dev/fd: %w", err)
	}
	console, err := os.OpenFile(filepath.Join(dev, "console"), os.O_CREATE|os.O_WRONLY, 0o755)
	if err != nil {
		return fmt.Errorf("rootfs: touch /dev/console: %w", err)
	}
	return console.Close()
}

// mountShm mounts the 64 MiB /dev/shm tmpfs.
func mountShm(root string) error {
	m := Mount{
		Source: "shm", Target: filepath.Join(root, "dev", "shm"), FsType: "tmpfs",
		Flags: unix.MS_NOEXEC | unix.MS_NOSUID | unix.MS_NODEV,
		Data:  "mode=1777,size=67108864",
	}
	return m.Mount()
}

// mountRun mounts a fresh tmpfs at Root/run for loop-backed roots,
// recreating (empty) any subdirectories that existed there before, so
// init systems that expect e.g. /run/lock to pre-exist don't fail.
func mountRun(root string) error {
	run := filepath.Join(root, "run")
	var preserve []string
	entries, err := os.ReadDir(run)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				preserve = append(preserve, e.Name())
			}
		}
	}
	m := Mount{
		Source: "tmpfs", Target: run, FsType: "tmpfs",
		Flags: unix.MS_NOSUID | unix.MS_STRICTATIME,
		Data:  "mode=755,size=33554432",
	}
	if err := m.Mount(); err != nil {
		return err
	}
	for _, name := range preserve {
		if err := os.Mkdir(filepath.Join(run, name), 0o755); err != nil {
			return fmt.Errorf("rootfs: recreate /run/%s: %w", name, err)
		}
	}
	return nil
}
