package rootfs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// mountpoint is one entry of /proc/self/mountinfo relevant to the
// read-only snapshot remount.
type mountpoint struct {
	mountPoint string
}

// snapshotMounts reads /proc/self/mountinfo, matching the teacher-adjacent
// style of parsing procfs tables line by line rather than pulling in a
// dedicated mountinfo library.
func snapshotMounts() ([]mountpoint, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return nil, fmt.Errorf("rootfs: open mountinfo: %w", err)
	}
	defer f.Close()

	var out []mountpoint
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 {
			continue
		}
		out = append(out, mountpoint{mountPoint: fields[4]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("rootfs: scan mountinfo: %w", err)
	}
	return out, nil
}

// remountReadOnly snapshots the mount table and remounts every mount
// beneath root read-only except the hardened-proc paths and declared
// BindMap destinations, which keep their own mode (spec §4.2 step 6).
func remountReadOnly(root string, binds []BindEntry) error {
	mounts, err := snapshotMounts()
	if err != nil {
		return err
	}

	exempt := make(map[string]bool)
	proc := filepath.Join(root, "proc")
	for _, p := range roProcPaths {
		exempt[filepath.Join(proc, p)] = true
	}
	exempt[filepath.Join(proc, "kcore")] = true
	exempt[filepath.Join(proc, "sys")] = true
	for _, b := range binds {
		exempt[filepath.Join(root, b.Dest)] = true
	}

	prefix := root + string(filepath.Separator)
	for _, m := range mounts {
		if m.mountPoint != root && !strings.HasPrefix(m.mountPoint, prefix) {
			continue
		}
		if exempt[m.mountPoint] {
			continue
		}
		if err := unix.Mount("", m.mountPoint, "", unix.MS_REMOUNT|unix.MS_BIND|unix.MS_RDONLY, ""); err != nil {
			return fmt.Errorf("rootfs: remount %s ro: %w", m.mountPoint, err)
		}
	}
	return nil
}
