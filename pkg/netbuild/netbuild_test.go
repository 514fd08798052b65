package netbuild

import "testing"

func TestSynthesizeHWAddrStable(t *testing.T) {
	a := synthesizeHWAddr("box1", "eth0veth0")
	b := synthesizeHWAddr("box1", "eth0veth0")
	if a.String() != b.String() {
		t.Fatalf("synthesizeHWAddr not stable: %s != %s", a, b)
	}
	if a[0] != 0x02 {
		t.Errorf("synthesized address should be locally administered, got first octet %#x", a[0])
	}
}

func TestSynthesizeHWAddrVariesByInput(t *testing.T) {
	a := synthesizeHWAddr("box1", "eth0veth0")
	b := synthesizeHWAddr("box2", "eth0veth0")
	if a.String() == b.String() {
		t.Errorf("different hostnames should synthesize different addresses")
	}
}

func TestTransientName(t *testing.T) {
	if got := transientName("piv", 7); got != "piv7" {
		t.Errorf("transientName() = %q, want piv7", got)
	}
}
