package cred

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Apply drops the calling process's credentials to r, in the mandated
// order: setgid, then setgroups, then setuid. Inverting this order either
// fails (setuid first removes the privilege needed for setgid) or leaks
// privilege (setgroups after setuid can silently no-op on some kernels).
func Apply(r Resolved) error {
	if err := unix.Setgid(int(r.GID)); err != nil {
		return fmt.Errorf("cred: setgid(%d): %w", r.GID, err)
	}
	groups := make([]int, len(r.Groups))
	for i, g := range r.Groups {
		groups[i] = int(g)
	}
	if err := unix.Setgroups(groups); err != nil {
		return fmt.Errorf("cred: setgroups(%v): %w", groups, err)
	}
	if err := unix.Setuid(int(r.UID)); err != nil {
		return fmt.Errorf("cred: setuid(%d): %w", r.UID, err)
	}
	return nil
}
