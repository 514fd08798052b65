// Package rlimit applies POSIX resource limits by setrlimit(2) before any
// other container setup step that could otherwise fail because of them.
//
// Adapted from the teacher's fixed-field RLimits (named CPU/Data/FileSize/...)
// to the launch engine's caller-supplied map of resource id to (soft, hard)
// pairs (spec §3 TaskEnv.Rlimit, §4.4).
package rlimit

import (
	"fmt"
	"sort"
	"syscall"

	"golang.org/x/sys/unix"
)

// Pair is a (soft, hard) resource limit, matching the original's
// distinction between the two bounds rather than collapsing to one value.
type Pair struct {
	Soft uint64
	Hard uint64
}

// Limits is the resource-id-keyed limit set carried on TaskEnv.Rlimit.
type Limits map[int]Pair

// Apply calls setrlimit for every configured resource, in ascending
// resource-id order so results are deterministic for tests.
func Apply(limits Limits) error {
	ids := make([]int, 0, len(limits))
	for id := range limits {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		p := limits[id]
		rlim := syscall.Rlimit{Cur: p.Soft, Max: p.Hard}
		if err := syscall.Setrlimit(id, &rlim); err != nil {
			return fmt.Errorf("rlimit: setrlimit(%s): %w", Name(id), err)
		}
	}
	return nil
}

// Name renders a resource id the way /proc-style diagnostics do, falling
// back to the numeric id for resources without a friendly name.
func Name(id int) string {
	switch id {
	case syscall.RLIMIT_CPU:
		return "cpu"
	case syscall.RLIMIT_DATA:
		return "data"
	case syscall.RLIMIT_FSIZE:
		return "fsize"
	case syscall.RLIMIT_STACK:
		return "stack"
	case syscall.RLIMIT_AS:
		return "as"
	case syscall.RLIMIT_CORE:
		return "core"
	case syscall.RLIMIT_NOFILE:
		return "nofile"
	case unix.RLIMIT_NPROC:
		return "nproc"
	default:
		return fmt.Sprintf("rlimit(%d)", id)
	}
}
