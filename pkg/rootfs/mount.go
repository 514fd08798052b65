// Package rootfs composes a container's filesystem view: rootfs mount or
// loop-mounted image, pseudo-filesystems, device nodes, bind maps, and the
// pivot_root/chroot handoff. It is the MountBuilder component, run by the
// init after it enters its mount namespace.
package rootfs

import "golang.org/x/sys/unix"

// Mount describes one mount(2) call, adapted from the teacher's
// pkg/mount.Mount (Source/Target/FsType/Data + Flags) to use the
// golang.org/x/sys/unix flag type directly instead of round-tripping
// through syscall.
type Mount struct {
	Source, Target, FsType, Data string
	Flags                        uintptr
	// SourceIsFile marks a bind mount whose source is a regular file, so
	// Target is prepared as an empty file rather than a directory.
	SourceIsFile bool
}

const bindRo = unix.MS_BIND | unix.MS_RDONLY

// Mount performs the mount(2) call, creating Target first. A bind mount
// that also requests MS_RDONLY needs the remount dance: the kernel ignores
// MS_RDONLY on the initial MS_BIND call.
func (m Mount) Mount() error {
	if err := mkdirTarget(m.Target, m.SourceIsFile); err != nil {
		return err
	}
	if err := unix.Mount(m.Source, m.Target, m.FsType, m.Flags, m.Data); err != nil {
		return &mountError{m, err}
	}
	if m.Flags&bindRo == bindRo {
		if err := unix.Mount("", m.Target, m.FsType, m.Flags|unix.MS_REMOUNT, m.Data); err != nil {
			return &mountError{m, err}
		}
	}
	return nil
}

type mountError struct {
	m   Mount
	err error
}

func (e *mountError) Error() string {
	return "rootfs: mount " + e.m.Target + ": " + e.err.Error()
}

func (e *mountError) Unwrap() error { return e.err }
