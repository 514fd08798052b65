// Package netbuild constructs network devices in the host netns and moves
// them into a container's netns, then configures addresses and routes
// from inside that netns. It is the NetBuilder component, split across
// the intermediate (device creation, move) and the init (address/route
// application), per spec §4.3.
package netbuild

import (
	"fmt"
	"hash/crc32"
	"net"
)

// Config is the subset of TaskEnv.NetCfg the builder consumes.
type Config struct {
	HostIface []string
	MacVlan   []MacVlanSpec
	IpVlan    []IpVlanSpec
	Veth      []VethSpec

	// Hostname seeds hardware-address synthesis when a spec omits one.
	Hostname string
}

// MacVlanSpec creates a macvlan device over Master, moved into the
// container netns under Name.
type MacVlanSpec struct {
	Master, Name, Mode string
	MTU                int
	HardwareAddr       net.HardwareAddr
}

// IpVlanSpec creates an ipvlan device over Master, moved into the
// container netns under Name.
type IpVlanSpec struct {
	Master, Name, Mode string
	MTU                int
}

// VethSpec creates a veth pair on host bridge Bridge; the peer end is
// moved into the container netns under Name.
type VethSpec struct {
	Bridge, Name string
	MTU          int
	HardwareAddr net.HardwareAddr
}

// IfaceConfig is a per-interface address/gateway application, applied
// in-container after the netns is populated.
type IfaceConfig struct {
	Name      string
	Addresses []net.IPNet
	Gateways  []net.IP
}

// synthesizeHWAddr derives a stable locally-administered MAC from the
// hostname mixed with the link's master+name, per spec §4.3: "02:" followed
// by a CRC32 of Hostname mixed with Master+Name.
func synthesizeHWAddr(hostname, mixin string) net.HardwareAddr {
	sum := crc32.ChecksumIEEE([]byte(hostname + mixin))
	return net.HardwareAddr{
		0x02,
		byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum),
		byte(sum ^ (sum >> 16)),
	}
}

func transientName(prefix string, tid int) string {
	return fmt.Sprintf("%s%d", prefix, tid)
}
