package cgroup

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// netCls is the subsystem name special-cased when networking is disabled.
const netCls = "net_cls"

// Current reads /proc/<pid>/cgroup and returns subsystem -> current leaf
// path. Lines whose subsystem list contains a comma (co-mounted compound
// controllers) are skipped entirely rather than split — preserved from the
// original implementation, see DESIGN.md Open Questions.
func Current(pid int) (map[string]string, error) {
	path := fmt.Sprintf("/proc/%d/cgroup", pid)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cgroup: open %s: %w", path, err)
	}
	defer f.Close()

	out := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		subsystem, leafPath := parts[1], parts[2]
		if subsystem == "" || strings.Contains(subsystem, ",") {
			continue
		}
		out[subsystem] = leafPath
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("cgroup: scan %s: %w", path, err)
	}
	return out, nil
}

// Fix reattaches pid to its configured leaf for every subsystem where the
// current /proc/<pid>/cgroup entry has drifted, per spec §4.5 FixCgroups.
// When networkEnabled is false, net_cls drift to any non-root path is
// repaired by reattaching to the subsystem root instead of the configured
// leaf (spec §4.5, §7).
func (p *Placer) Fix(pid int, leafCgroups map[string]string, networkEnabled bool) error {
	current, err := Current(pid)
	if err != nil {
		return err
	}
	for subsystem, currentPath := range current {
		if strings.Contains(subsystem, ",") {
			continue
		}

		wantPath, configured := leafCgroups[subsystem]
		switch {
		case subsystem == netCls && !networkEnabled:
			if currentPath == "/" || currentPath == "" {
				continue
			}
			wantPath, configured = "/", true
		case !configured:
			continue
		}

		if currentPath == wantPath {
			continue
		}
		sub, ok := p.Subsystems[subsystem]
		if !ok {
			continue
		}
		leaf, err := sub.Get(wantPath)
		if err != nil {
			return fmt.Errorf("cgroup: fix resolve %q/%q: %w", subsystem, wantPath, err)
		}
		if err := leaf.Attach(pid); err != nil {
			return fmt.Errorf("cgroup: fix attach pid %d to %q/%q: %w", pid, subsystem, wantPath, err)
		}
	}
	return nil
}
