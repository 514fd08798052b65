package netbuild

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/vishvananda/netlink"
)

var transientSeq int32

func nextTid() int {
	return int(atomic.AddInt32(&transientSeq, 1))
}

// Build runs in the intermediate, which holds the host netns. It creates
// every configured device in the host netns and moves it into the target
// netns identified by pid (spec §4.3: devices are created outside but
// configured inside).
func Build(cfg Config, pid int) error {
	for _, name := range cfg.HostIface {
		link, err := netlink.LinkByName(name)
		if err != nil {
			return fmt.Errorf("netbuild: find host iface %s: %w", name, err)
		}
		if err := netlink.LinkSetNsPid(link, pid); err != nil {
			return fmt.Errorf("netbuild: move host iface %s: %w", name, err)
		}
	}

	for _, spec := range cfg.IpVlan {
		if err := buildIPVlan(cfg, spec, pid); err != nil {
			return err
		}
	}
	for _, spec := range cfg.MacVlan {
		if err := buildMacVlan(cfg, spec, pid); err != nil {
			return err
		}
	}
	for _, spec := range cfg.Veth {
		if err := buildVeth(cfg, spec, pid); err != nil {
			return err
		}
	}
	return nil
}

func buildIPVlan(cfg Config, spec IpVlanSpec, pid int) error {
	master, err := netlink.LinkByName(spec.Master)
	if err != nil {
		return fmt.Errorf("netbuild: ipvlan master %s: %w", spec.Master, err)
	}
	transient := transientName("piv", nextTid())
	link := &netlink.IPVlan{
		LinkAttrs: netlink.LinkAttrs{Name: transient, ParentIndex: master.Attrs().Index, MTU: spec.MTU},
		Mode:      ipvlanMode(spec.Mode),
	}
	if err := netlink.LinkAdd(link); err != nil {
		return fmt.Errorf("netbuild: create ipvlan %s: %w", transient, err)
	}
	return renameAndMove(transient, spec.Name, pid)
}

func buildMacVlan(cfg Config, spec MacVlanSpec, pid int) error {
	master, err := netlink.LinkByName(spec.Master)
	if err != nil {
		return fmt.Errorf("netbuild: macvlan master %s: %w", spec.Master, err)
	}
	transient := transientName("pmv", nextTid())
	link := &netlink.Macvlan{
		LinkAttrs: netlink.LinkAttrs{Name: transient, ParentIndex: master.Attrs().Index, MTU: spec.MTU},
		Mode:      macvlanMode(spec.Mode),
	}
	if err := netlink.LinkAdd(link); err != nil {
		return fmt.Errorf("netbuild: create macvlan %s: %w", transient, err)
	}
	hwAddr := spec.HardwareAddr
	if len(hwAddr) == 0 {
		hwAddr = synthesizeHWAddr(cfg.Hostname, spec.Master+spec.Name)
	}
	created, err := netlink.LinkByName(transient)
	if err != nil {
		return fmt.Errorf("netbuild: lookup macvlan %s: %w", transient, err)
	}
	if err := netlink.LinkSetHardwareAddr(created, hwAddr); err != nil {
		return fmt.Errorf("netbuild: set macvlan hwaddr %s: %w", transient, err)
	}
	return renameAndMove(transient, spec.Name, pid)
}

func buildVeth(cfg Config, spec VethSpec, pid int) error {
	transient := transientName("pvh", nextTid())
	link := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: transient, MTU: spec.MTU},
		PeerName:  spec.Name,
	}
	if err := netlink.LinkAdd(link); err != nil {
		return fmt.Errorf("netbuild: create veth pair %s/%s: %w", transient, spec.Name, err)
	}

	bridge, err := netlink.LinkByName(spec.Bridge)
	if err != nil {
		return fmt.Errorf("netbuild: veth bridge %s: %w", spec.Bridge, err)
	}
	hostEnd, err := netlink.LinkByName(transient)
	if err != nil {
		return fmt.Errorf("netbuild: lookup veth host end %s: %w", transient, err)
	}
	if err := netlink.LinkSetMaster(hostEnd, bridge.(*netlink.Bridge)); err != nil {
		return fmt.Errorf("netbuild: attach %s to bridge %s: %w", transient, spec.Bridge, err)
	}
	if err := netlink.LinkSetUp(hostEnd); err != nil {
		return fmt.Errorf("netbuild: up %s: %w", transient, err)
	}

	peer, err := netlink.LinkByName(spec.Name)
	if err != nil {
		return fmt.Errorf("netbuild: lookup veth peer %s: %w", spec.Name, err)
	}
	hwAddr := spec.HardwareAddr
	if len(hwAddr) == 0 {
		hwAddr = synthesizeHWAddr(cfg.Hostname, spec.Bridge+spec.Name)
	}
	if err := netlink.LinkSetHardwareAddr(peer, hwAddr); err != nil {
		return fmt.Errorf("netbuild: set veth peer hwaddr %s: %w", spec.Name, err)
	}
	if err := netlink.LinkSetNsPid(peer, pid); err != nil {
		return fmt.Errorf("netbuild: move veth peer %s: %w", spec.Name, err)
	}
	return nil
}

// renameAndMove renames a transiently-named link to its final name, then
// moves it into pid's netns. The rename happens in the host netns because
// names only need to be unique within a single netns and a rename after
// the move would race the container's own first use of the interface.
func renameAndMove(transient, final string, pid int) error {
	link, err := netlink.LinkByName(transient)
	if err != nil {
		return fmt.Errorf("netbuild: lookup %s: %w", transient, err)
	}
	if err := netlink.LinkSetName(link, final); err != nil {
		return fmt.Errorf("netbuild: rename %s -> %s: %w", transient, final, err)
	}
	link, err = netlink.LinkByName(final)
	if err != nil {
		return fmt.Errorf("netbuild: lookup %s: %w", final, err)
	}
	if err := netlink.LinkSetNsPid(link, pid); err != nil {
		return fmt.Errorf("netbuild: move %s: %w", final, err)
	}
	return nil
}

func ipvlanMode(mode string) netlink.IPVlanMode {
	switch mode {
	case "l3":
		return netlink.IPVLAN_MODE_L3
	case "l3s":
		return netlink.IPVLAN_MODE_L3S
	default:
		return netlink.IPVLAN_MODE_L2
	}
}

func macvlanMode(mode string) netlink.MacvlanMode {
	switch mode {
	case "bridge":
		return netlink.MACVLAN_MODE_BRIDGE
	case "private":
		return netlink.MACVLAN_MODE_PRIVATE
	case "passthru":
		return netlink.MACVLAN_MODE_PASSTHRU
	default:
		return netlink.MACVLAN_MODE_VEPA
	}
}

// ConfigureInContainer runs in the init after entering the netns NetBuilder
// populated. For every present link it brings the link up and applies
// addresses/gateways, skipping empty or unresolvable entries silently
// (they represent placeholder TaskEnv.IpVec/GwVec entries, spec §4.3).
func ConfigureInContainer(ifaces []IfaceConfig) error {
	for _, ic := range ifaces {
		if ic.Name == "" {
			continue
		}
		link, err := netlink.LinkByName(ic.Name)
		if err != nil {
			continue
		}
		if err := netlink.LinkSetUp(link); err != nil {
			return fmt.Errorf("netbuild: up %s: %w", ic.Name, err)
		}
		for _, addr := range ic.Addresses {
			if addr.IP == nil || addr.IP.IsUnspecified() {
				continue
			}
			a := addr
			if err := netlink.AddrAdd(link, &netlink.Addr{IPNet: &a}); err != nil {
				return fmt.Errorf("netbuild: addr %s on %s: %w", addr.String(), ic.Name, err)
			}
		}
		for _, gw := range ic.Gateways {
			if gw == nil || gw.IsUnspecified() {
				continue
			}
			route := &netlink.Route{
				LinkIndex: link.Attrs().Index,
				Scope:     netlink.SCOPE_UNIVERSE,
				Gw:        gw,
				Dst:       &net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(0, 32)},
			}
			if err := netlink.RouteAdd(route); err != nil {
				return fmt.Errorf("netbuild: gateway %s on %s: %w", gw.String(), ic.Name, err)
			}
		}
	}
	return nil
}
