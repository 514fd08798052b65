package launch

import (
	"net"
	"testing"
)

func TestWireEncodeDecodeRoundTrip(t *testing.T) {
	env := &TaskEnv{
		Command:     "/bin/true",
		Root:        "/srv/rootfs",
		UID:         1000,
		GID:         1000,
		LeafCgroups: map[string]string{"memory": "/task1"},
	}
	w := toWire(env)
	b, err := encodeWire(w)
	if err != nil {
		t.Fatalf("encodeWire: %v", err)
	}
	got, err := decodeWire(b)
	if err != nil {
		t.Fatalf("decodeWire: %v", err)
	}
	if got.Root != env.Root || got.UID != env.UID {
		t.Errorf("decodeWire(encodeWire(x)) = %+v, want matching Root/UID", got)
	}
	if got.LeafCgroups["memory"] != "/task1" {
		t.Errorf("LeafCgroups not preserved: %+v", got.LeafCgroups)
	}
}

func TestCloneFlagsFor(t *testing.T) {
	w := wireEnv{Isolate: true, NewMountNs: true, Hostname: "box"}
	flags := cloneFlagsFor(w)
	if flags == 0 {
		t.Fatal("expected non-zero clone flags")
	}
	none := cloneFlagsFor(wireEnv{})
	if none != 0 {
		t.Errorf("expected zero clone flags for empty wireEnv, got %#x", none)
	}
}

func TestWireIfaceConfigsUnionsNames(t *testing.T) {
	cfg := NetCfg{
		IpVec: map[string][]net.IPNet{
			"eth0": {{IP: net.IPv4(10, 0, 0, 2), Mask: net.CIDRMask(24, 32)}},
		},
		GwVec: map[string][]net.IP{
			"eth1": {net.IPv4(10, 0, 0, 1)},
		},
	}
	out := wireIfaceConfigs(cfg)
	if len(out) != 2 {
		t.Fatalf("wireIfaceConfigs() len = %d, want 2", len(out))
	}
	names := map[string]bool{}
	for _, ic := range out {
		names[ic.Name] = true
	}
	if !names["eth0"] || !names["eth1"] {
		t.Errorf("expected both eth0 and eth1, got %+v", names)
	}
}
