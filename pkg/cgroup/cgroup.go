// Package cgroup attaches pids to cgroup leaves and repairs drift between
// a task's actual cgroup membership and its configured leaves. It is the
// CgroupPlacer component; actual subsystem hierarchy discovery (finding
// where cgroupfs is mounted, which controllers are co-mounted) is the
// external collaborator named in spec §1 and is represented here only by
// the narrow Leaf/Subsystem interfaces the rest of the engine consumes.
package cgroup

import (
	"fmt"
	"strings"
)

// Leaf is a single subsystem's cgroup directory a pid can join.
type Leaf interface {
	// Attach writes pid into this leaf's cgroup.procs.
	Attach(pid int) error
	// RelPath returns the leaf's path relative to the subsystem root.
	RelPath() string
}

// Subsystem resolves a caller-supplied leaf path (TaskEnv.LeafCgroups'
// values) to a concrete Leaf within one controller hierarchy.
type Subsystem interface {
	Get(leafPath string) (Leaf, error)
}

// Placer attaches a pid to every leaf named in a TaskEnv.LeafCgroups map,
// resolving each subsystem name through Subsystems.
type Placer struct {
	Subsystems map[string]Subsystem
}

// NewFSPlacer builds a Placer backed by real cgroupfs for every subsystem
// named in subsystems, rooted at cgroupfsRoot (typically /sys/fs/cgroup).
func NewFSPlacer(cgroupfsRoot string, subsystems []string) *Placer {
	m := make(map[string]Subsystem, len(subsystems))
	for _, name := range subsystems {
		m[name] = &FSSubsystem{Root: cgroupfsRoot, Name: name}
	}
	return &Placer{Subsystems: m}
}

// Attach joins pid to every leaf in leafCgroups. Subsystem names containing
// a comma (compound co-mounted controllers, e.g. "cpu,cpuacct") are skipped
// — see the preserved Open Question in DESIGN.md.
func (p *Placer) Attach(pid int, leafCgroups map[string]string) error {
	for subsystem, leafPath := range leafCgroups {
		if strings.Contains(subsystem, ",") {
			continue
		}
		sub, ok := p.Subsystems[subsystem]
		if !ok {
			return fmt.Errorf("cgroup: no subsystem accessor for %q", subsystem)
		}
		leaf, err := sub.Get(leafPath)
		if err != nil {
			return fmt.Errorf("cgroup: resolve leaf %q/%q: %w", subsystem, leafPath, err)
		}
		if err := leaf.Attach(pid); err != nil {
			return fmt.Errorf("cgroup: attach pid %d to %q/%q: %w", pid, subsystem, leafPath, err)
		}
	}
	return nil
}
