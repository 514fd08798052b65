package cgroup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// filePerm matches the teacher's pkg/cgroup.SubCGroup.WriteUint permission.
const filePerm = 0o644

// FSLeaf is a filesystem-backed Leaf, adapted from the teacher's
// SubCGroup (pkg/cgroup/subcgroup.go WriteUint/ReadUint idiom), generalized
// from named accessors to the one operation the engine actually needs:
// writing cgroup.procs.
type FSLeaf struct {
	root string // subsystem hierarchy root, e.g. /sys/fs/cgroup/memory
	rel  string // leaf path relative to root
}

// RelPath returns the leaf's path relative to the subsystem root.
func (l *FSLeaf) RelPath() string { return l.rel }

// Attach writes pid to this leaf's cgroup.procs, creating the leaf
// directory first if it does not yet exist.
func (l *FSLeaf) Attach(pid int) error {
	dir := filepath.Join(l.root, l.rel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cgroup: mkdir %s: %w", dir, err)
	}
	procs := filepath.Join(dir, "cgroup.procs")
	if err := os.WriteFile(procs, []byte(strconv.Itoa(pid)), filePerm); err != nil {
		return fmt.Errorf("cgroup: write %s: %w", procs, err)
	}
	return nil
}

// FSSubsystem resolves leaf paths within one controller's cgroupfs hierarchy.
type FSSubsystem struct {
	Root string // e.g. /sys/fs/cgroup
	Name string // e.g. "memory", "freezer", "net_cls"
}

// Get returns the Leaf for leafPath within this subsystem.
func (s *FSSubsystem) Get(leafPath string) (Leaf, error) {
	return &FSLeaf{root: filepath.Join(s.Root, s.Name), rel: leafPath}, nil
}
