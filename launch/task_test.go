package launch

import "testing"

func TestGetPidZeroWhenStopped(t *testing.T) {
	var h TaskHandle
	if got := h.GetPid(); got != 0 {
		t.Errorf("GetPid() on stopped handle = %d, want 0", got)
	}
}

func TestExitTransitionsToStopped(t *testing.T) {
	h := TaskHandle{state: started, pid: 123}
	h.Exit(7)
	if h.IsRunning() {
		t.Error("IsRunning() should be false after Exit")
	}
	if h.GetExitStatus() != 7 {
		t.Errorf("GetExitStatus() = %d, want 7", h.GetExitStatus())
	}
	if h.GetPid() != 0 {
		t.Errorf("GetPid() after Exit = %d, want 0", h.GetPid())
	}
}

func TestRestoreTransitionsToStarted(t *testing.T) {
	var h TaskHandle
	h.Restore(42, map[string]string{"freezer": "/task1"}, true, nil)
	if !h.IsRunning() {
		t.Error("IsRunning() should be true after Restore")
	}
	if h.GetPid() != 42 {
		t.Errorf("GetPid() = %d, want 42", h.GetPid())
	}
}

func TestHasCorrectParentUsesOwnStatus(t *testing.T) {
	h := TaskHandle{state: started, pid: 1}
	// pid 1 exists in any container/namespace; this process is (almost
	// certainly) not its parent, so the check should simply return false
	// rather than erroring, exercising the real /proc/1/status read.
	ok, err := h.HasCorrectParent()
	if err != nil {
		t.Skipf("proc not available in this environment: %v", err)
	}
	if ok {
		t.Skip("unexpectedly running as pid 1's parent in this environment")
	}
}
