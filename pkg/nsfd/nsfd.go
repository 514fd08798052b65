// Package nsfd opens, pins, and enters Linux namespace file descriptors.
//
// It backs the launch engine's NamespaceHandle component: a supervisor
// holds a Snapshot of an arbitrary pid's namespaces open across the
// lifetime of a launch so the intermediate process can join them with
// setns(2) before the container's init is cloned.
package nsfd

import "fmt"

// Kind identifies one of the five namespace types the launch engine cares
// about. User namespaces are out of scope (see spec Non-goals).
type Kind int

const (
	Mount Kind = iota
	PID
	Net
	IPC
	UTS
)

func (k Kind) String() string {
	switch k {
	case Mount:
		return "mnt"
	case PID:
		return "pid"
	case Net:
		return "net"
	case IPC:
		return "ipc"
	case UTS:
		return "uts"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// enterOrder is the order namespaces must be joined in: network-adjacent
// namespaces first, mount namespace last, since pivot_root/chroot-style
// operations that follow a setns(CLONE_NEWNS) depend on every other
// namespace already being in its final state.
var enterOrder = []Kind{UTS, IPC, Net, PID, Mount}
