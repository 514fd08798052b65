package nsfd

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Handle is an open reference to one namespace of one (possibly exited)
// process. It stays valid for as long as the fd is held open, independent
// of whether the owning process is still alive.
type Handle struct {
	Kind Kind
	file *os.File
}

// Open pins the namespace of Kind k belonging to pid.
func Open(pid int, k Kind) (*Handle, error) {
	path := fmt.Sprintf("/proc/%d/ns/%s", pid, k)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nsfd: open %s: %w", path, err)
	}
	return &Handle{Kind: k, file: f}, nil
}

// FromFD wraps an fd the process already holds open (e.g. one inherited
// across exec via ExtraFiles) as a Handle, without opening /proc/<pid>/ns
// itself. name only affects the backing os.File's diagnostic name.
func FromFD(fd uintptr, k Kind, name string) *Handle {
	return &Handle{Kind: k, file: os.NewFile(fd, name)}
}

// Fd returns the underlying descriptor, valid as long as the Handle is not closed.
func (h *Handle) Fd() uintptr { return h.file.Fd() }

// File returns the backing *os.File so it can be passed across exec as an
// ExtraFiles entry.
func (h *Handle) File() *os.File { return h.file }

// Enter performs setns(2) into this namespace.
func (h *Handle) Enter() error {
	if err := unix.Setns(int(h.file.Fd()), nsCloneFlag(h.Kind)); err != nil {
		return fmt.Errorf("nsfd: setns(%s): %w", h.Kind, err)
	}
	return nil
}

// Close releases the pinned fd.
func (h *Handle) Close() error {
	if h == nil || h.file == nil {
		return nil
	}
	return h.file.Close()
}

func nsCloneFlag(k Kind) int {
	switch k {
	case Mount:
		return unix.CLONE_NEWNS
	case PID:
		return unix.CLONE_NEWPID
	case Net:
		return unix.CLONE_NEWNET
	case IPC:
		return unix.CLONE_NEWIPC
	case UTS:
		return unix.CLONE_NEWUTS
	default:
		return 0
	}
}

// Snapshot holds open handles to some subset of a single pid's namespaces.
// It is the concrete type behind the spec's "NamespaceSnapshot provider".
type Snapshot struct {
	handles map[Kind]*Handle
}

// OpenSnapshot opens handles for every kind in kinds, belonging to pid.
// On any failure, handles already opened are closed before returning.
func OpenSnapshot(pid int, kinds []Kind) (*Snapshot, error) {
	s := &Snapshot{handles: make(map[Kind]*Handle, len(kinds))}
	for _, k := range kinds {
		h, err := Open(pid, k)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.handles[k] = h
	}
	return s, nil
}

// FromFDs builds a Snapshot from fds already held open by this process,
// keyed by Kind, for the case where handles were opened by another process
// (the supervisor) and inherited across exec rather than opened locally.
func FromFDs(fds map[Kind]uintptr) *Snapshot {
	s := &Snapshot{handles: make(map[Kind]*Handle, len(fds))}
	for k, fd := range fds {
		s.handles[k] = FromFD(fd, k, fmt.Sprintf("ns:%s", k))
	}
	return s
}

// Get returns the handle for k, or nil if the snapshot does not hold one.
func (s *Snapshot) Get(k Kind) *Handle {
	if s == nil {
		return nil
	}
	return s.handles[k]
}

// Kinds reports which namespace kinds this snapshot holds, in join order.
func (s *Snapshot) Kinds() []Kind {
	if s == nil {
		return nil
	}
	var ks []Kind
	for _, k := range enterOrder {
		if _, ok := s.handles[k]; ok {
			ks = append(ks, k)
		}
	}
	return ks
}

// Enter joins every namespace held by the snapshot, in the order mount
// namespaces must be joined last.
func (s *Snapshot) Enter() error {
	if s == nil {
		return nil
	}
	for _, k := range enterOrder {
		h, ok := s.handles[k]
		if !ok {
			continue
		}
		if err := h.Enter(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every handle held by the snapshot.
func (s *Snapshot) Close() error {
	if s == nil {
		return nil
	}
	var first error
	for _, h := range s.handles {
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Chroot performs chroot(2) to root. It is a standalone primitive used by
// the rootfs builder when ParentNs.Mnt is already joined and only the
// container's root directory needs swapping in.
func Chroot(root string) error {
	if err := unix.Chroot(root); err != nil {
		return fmt.Errorf("nsfd: chroot(%s): %w", root, err)
	}
	return nil
}
