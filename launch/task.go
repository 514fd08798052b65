package launch

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/nsbox/launchd/pkg/cgroup"
)

// state is TaskHandle's two-state lifecycle (spec §3).
type state int

const (
	stopped state = iota
	started
)

// TaskHandle tracks one launched container after Start returns, and
// supports rediscovering one across a supervisor restart.
type TaskHandle struct {
	state      state
	pid        int
	exitStatus int

	leafCgroups    map[string]string
	networkEnabled bool
	placer         *cgroup.Placer
}

// GetPid returns the container's init pid, or 0 if Stopped.
func (t *TaskHandle) GetPid() int {
	if t.state != started {
		return 0
	}
	return t.pid
}

// IsRunning reports whether the handle believes its task is Started.
func (t *TaskHandle) IsRunning() bool {
	return t.state == started
}

// GetExitStatus returns the last recorded exit status. Meaningful only
// after a transition back to Stopped via Exit.
func (t *TaskHandle) GetExitStatus() int {
	return t.exitStatus
}

// Exit transitions Started -> Stopped, recording status.
func (t *TaskHandle) Exit(status int) {
	t.exitStatus = status
	t.pid = 0
	t.state = stopped
}

// Restore transitions Stopped -> Started by adopting pid directly, without
// re-running any setup. Callers must verify HasCorrectParent and
// HasCorrectFreezer themselves before trusting the adopted handle (spec
// §4.5).
func (t *TaskHandle) Restore(pid int, leafCgroups map[string]string, networkEnabled bool, placer *cgroup.Placer) {
	t.pid = pid
	t.state = started
	t.leafCgroups = leafCgroups
	t.networkEnabled = networkEnabled
	t.placer = placer
}

// procStatus is the small slice of /proc/<pid>/status this package reads.
type procStatus struct {
	state string
	ppid  int
}

func readProcStatus(pid int) (procStatus, error) {
	path := fmt.Sprintf("/proc/%d/status", pid)
	f, err := os.Open(path)
	if err != nil {
		return procStatus{}, fmt.Errorf("launch: open %s: %w", path, err)
	}
	defer f.Close()

	var out procStatus
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "State:"):
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				out.state = fields[1]
			}
		case strings.HasPrefix(line, "PPid:"):
			fields := strings.Fields(line)
			if len(fields) == 2 {
				ppid, err := strconv.Atoi(fields[1])
				if err == nil {
					out.ppid = ppid
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return procStatus{}, fmt.Errorf("launch: scan %s: %w", path, err)
	}
	return out, nil
}

// IsZombie parses /proc/<pid>/status, returning true iff State's first
// letter is Z.
func (t *TaskHandle) IsZombie() (bool, error) {
	st, err := readProcStatus(t.pid)
	if err != nil {
		return false, err
	}
	return st.state == "Z", nil
}

// GetPPid parses the PPid field from /proc/<pid>/status.
func (t *TaskHandle) GetPPid() (int, error) {
	st, err := readProcStatus(t.pid)
	if err != nil {
		return 0, err
	}
	return st.ppid, nil
}

// HasCorrectParent reports whether the task's parent is this supervisor
// process, i.e. it was reparented here by the kernel's subreaper mechanism
// after the intermediate exited (spec §4.5).
func (t *TaskHandle) HasCorrectParent() (bool, error) {
	ppid, err := t.GetPPid()
	if err != nil {
		return false, err
	}
	return ppid == os.Getpid(), nil
}

// HasCorrectFreezer reads /proc/<pid>/cgroup and checks the freezer leaf
// matches what was configured. A zombie's cgroup info is unreliable, so
// zombies are reported as correct unconditionally (spec §4.5).
func (t *TaskHandle) HasCorrectFreezer() (bool, error) {
	zombie, err := t.IsZombie()
	if err != nil {
		return false, err
	}
	if zombie {
		return true, nil
	}
	current, err := cgroup.Current(t.pid)
	if err != nil {
		return false, err
	}
	want, ok := t.leafCgroups["freezer"]
	if !ok {
		return true, nil
	}
	return current["freezer"] == want, nil
}

// FixCgroups reattaches the task to every configured leaf it has drifted
// from, applying the net_cls-to-root special case when networking is
// disabled (spec §4.5).
func (t *TaskHandle) FixCgroups() error {
	if t.placer == nil {
		return nil
	}
	return t.placer.Fix(t.pid, t.leafCgroups, t.networkEnabled)
}

// Kill sends signal to the task's pid. It is a thin wrapper kept here
// rather than inlined at call sites since spec §6 names Kill as a produced
// interface of TaskHandle.
func (t *TaskHandle) Kill(sig syscall.Signal) error {
	if t.pid == 0 {
		return nil
	}
	return syscall.Kill(t.pid, sig)
}
