package launch

import (
	"net"

	"github.com/nsbox/launchd/pkg/netbuild"
	"github.com/nsbox/launchd/pkg/rlimit"
)

// BindMap is one {Source, Dest, Rdonly} bind-mount spec entry, applied in
// the order given (spec §3 TaskEnv.BindMap).
type BindMap struct {
	Source string
	Dest   string
	Rdonly bool
}

// NetCfg is TaskEnv.NetCfg: the network topology to wire into the init's
// netns, plus per-interface addressing applied once inside.
type NetCfg struct {
	NewNetNs  bool
	Inherited bool
	Host      bool
	NetNsName string

	HostIface []string
	MacVlan   []netbuild.MacVlanSpec
	IpVlan    []netbuild.IpVlanSpec
	Veth      []netbuild.VethSpec

	// IpVec and GwVec are keyed by interface name; an entry with an empty
	// or nil value is a placeholder and is skipped silently (spec §4.3).
	IpVec map[string][]net.IPNet
	GwVec map[string][]net.IP
}

// ParentNsSnapshot is a set of namespace handles, opened against an
// arbitrary pid by the consumed NamespaceSnapshot provider (spec §6), that
// the intermediate enters before cloning the init.
type ParentNsSnapshot struct {
	// Root is the rootfs path to chroot to once ParentNs.Mnt has been
	// entered (spec §4.2 step 3). Empty means no shortcut: MountBuilder
	// constructs rootfs normally.
	Root string

	// Handles holds the supplied subset of {mnt, pid, net, ipc, uts}
	// handles. Nil means no parent namespace is entered.
	Handles NamespaceEnterer
}

// NamespaceEnterer is satisfied by *pkg/nsfd.Snapshot; narrowed here to the
// one operation the Launcher needs so launch doesn't import pkg/nsfd types
// directly into the wire-transferred TaskEnv.
type NamespaceEnterer interface {
	Enter() error
	Close() error
}

// TaskEnv fully describes one container to launch. It is immutable once
// handed to a Launcher (spec §3).
type TaskEnv struct {
	// Command is the command line to exec, shell-word-expanded (via
	// pkg/shellword) without command substitution (spec §3).
	Command string

	Cwd       string
	CreateCwd bool

	Root       string
	RootRdOnly bool

	Loop    string
	LoopDev int

	UID       uint32
	GID       uint32
	GroupList []uint32

	Environ []string

	StdinPath  string
	StdoutPath string
	StderrPath string

	Isolate    bool
	NewMountNs bool
	Hostname   string

	BindMap []BindMap
	BindDns bool

	NetCfg NetCfg

	Caps uint64

	Rlimit rlimit.Limits

	LeafCgroups map[string]string

	// ParentNs, if Handles is non-nil, is entered by the intermediate
	// before the namespace-creating clone.
	ParentNs ParentNsSnapshot

	// ClientMntNs, if non-nil, is entered by the intermediate before
	// reopening stdio, so host-path arguments resolve as the originating
	// client sees them (spec §4.1 step 3).
	ClientMntNs NamespaceEnterer

	// NetworkEnabled mirrors the network.enabled config option (spec §6):
	// when false, NetBuilder does not run and FixCgroups repairs net_cls
	// drift to the subsystem root instead of a configured leaf.
	NetworkEnabled bool
}
