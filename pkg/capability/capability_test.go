package capability

import "testing"

func TestSplitRoundTrips(t *testing.T) {
	mask := uint64(0x1_0000_0002)
	lo, hi := split(mask)
	if lo != 2 {
		t.Errorf("lo = %#x, want 2", lo)
	}
	if hi != 1 {
		t.Errorf("hi = %#x, want 1", hi)
	}
}

func TestBoundingSetClampsToLastCap(t *testing.T) {
	kept := BoundingSet(^uint64(0), 3)
	want := map[int]bool{0: true, 1: true, 2: true, 3: true}
	if len(kept) != len(want) {
		t.Fatalf("BoundingSet len = %d, want %d", len(kept), len(want))
	}
	for i := range want {
		if !kept[i] {
			t.Errorf("BoundingSet missing bit %d", i)
		}
	}
	if kept[4] {
		t.Error("BoundingSet should not include bits above lastCap")
	}
}

func TestBoundingSetHonorsMask(t *testing.T) {
	kept := BoundingSet(1<<SetPCap, 10)
	if len(kept) != 1 || !kept[SetPCap] {
		t.Errorf("BoundingSet(1<<SetPCap) = %v, want only {%d}", kept, SetPCap)
	}
}

func TestLastCapCached(t *testing.T) {
	lc, err := LastCap()
	if err != nil {
		t.Skipf("cap_last_cap not available in this environment: %v", err)
	}
	lc2, err := LastCap()
	if err != nil {
		t.Fatalf("second LastCap() call: %v", err)
	}
	if lc != lc2 {
		t.Errorf("LastCap() not stable across calls: %d != %d", lc, lc2)
	}
}
