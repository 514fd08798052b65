// Package capability clamps the Linux capability bounding set and applies
// the inheritable/effective/permitted masks the container's init should
// carry into its execve. It is the CapDropper component.
package capability

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// SetPCap is the bit index of CAP_SETPCAP, dropped last so that earlier
// PR_CAPBSET_DROP calls remain possible.
const SetPCap = 8

const lastCapPath = "/proc/sys/kernel/cap_last_cap"

var lastCapOnce struct {
	sync.Once
	value int
	err   error
}

// LastCap returns the running kernel's cap_last_cap ceiling, read once and
// cached as a process-wide immutable value (TaskGetLastCap in spec terms).
func LastCap() (int, error) {
	lastCapOnce.Do(func() {
		b, err := os.ReadFile(lastCapPath)
		if err != nil {
			lastCapOnce.err = fmt.Errorf("capability: read %s: %w", lastCapPath, err)
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(string(b)))
		if err != nil {
			lastCapOnce.err = fmt.Errorf("capability: parse %s: %w", lastCapPath, err)
			return
		}
		lastCapOnce.value = n
	})
	return lastCapOnce.value, lastCapOnce.err
}

// BoundingSet returns the set of capability indices that Apply(caps) would
// leave in the bounding set, for use by tests and callers that want to
// assert the testable property in spec §8.
func BoundingSet(caps uint64, lastCap int) map[int]bool {
	kept := map[int]bool{}
	for i := 0; i <= lastCap; i++ {
		if caps&(1<<uint(i)) != 0 {
			kept[i] = true
		}
	}
	return kept
}
