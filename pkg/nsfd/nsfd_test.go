package nsfd

import (
	"os"
	"reflect"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Mount:    "mnt",
		PID:      "pid",
		Net:      "net",
		IPC:      "ipc",
		UTS:      "uts",
		Kind(99): "kind(99)",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}

func TestOpenOwnNamespace(t *testing.T) {
	h, err := Open(os.Getpid(), Mount)
	if err != nil {
		t.Skipf("proc not available in this environment: %v", err)
	}
	defer h.Close()
	if h.Kind != Mount {
		t.Errorf("Kind = %v, want Mount", h.Kind)
	}
	if h.Fd() == 0 {
		t.Error("Fd() should be non-zero for an open handle")
	}
}

func TestSnapshotKindsFollowsEnterOrder(t *testing.T) {
	s := &Snapshot{handles: map[Kind]*Handle{
		Mount: {Kind: Mount},
		UTS:   {Kind: UTS},
		Net:   {Kind: Net},
	}}
	got := s.Kinds()
	want := []Kind{UTS, Net, Mount}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}
}

func TestSnapshotGetMissingKind(t *testing.T) {
	s := &Snapshot{handles: map[Kind]*Handle{}}
	if h := s.Get(PID); h != nil {
		t.Errorf("Get(PID) on empty snapshot = %v, want nil", h)
	}
}

func TestNilSnapshotIsSafe(t *testing.T) {
	var s *Snapshot
	if err := s.Enter(); err != nil {
		t.Errorf("Enter() on nil snapshot = %v, want nil", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil snapshot = %v, want nil", err)
	}
	if got := s.Kinds(); got != nil {
		t.Errorf("Kinds() on nil snapshot = %v, want nil", got)
	}
}
