package capability

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// capHeader/capData mirror struct __user_cap_header_struct/__user_cap_data_struct
// from linux/capability.h, version 3 (64-bit capability masks split across
// two 32-bit words each). Grounded on the teacher's own raw SYS_CAPSET
// sequence in pkg/forkexec/fork_child_linux.go and the header/data values
// defined in pkg/forkexec/consts.go.
type capHeader struct {
	version uint32
	pid     int32
}

type capData struct {
	effective   uint32
	permissible uint32
	inheritable uint32
}

const linuxCapabilityVersion3 = 0x20080522

// Apply sets effective=permitted=all, inheritable=caps, then clamps the
// bounding set to caps (CAP_SETPCAP dropped last), per spec §4.4. It must
// run while still root; call before CredResolver's Apply.
func Apply(caps uint64) error {
	lc, err := LastCap()
	if err != nil {
		return err
	}

	hdr := capHeader{version: linuxCapabilityVersion3, pid: 0}
	var data [2]capData
	data[0].effective, data[1].effective = split(^uint64(0))
	data[0].permissible, data[1].permissible = split(^uint64(0))
	data[0].inheritable, data[1].inheritable = split(caps)

	if _, _, errno := unix.Syscall(unix.SYS_CAPSET,
		uintptr(unsafe.Pointer(&hdr)), uintptr(unsafe.Pointer(&data[0])), 0); errno != 0 {
		return fmt.Errorf("capability: capset: %w", errno)
	}

	for i := 0; i <= lc; i++ {
		if i == SetPCap {
			continue
		}
		if caps&(1<<uint(i)) != 0 {
			continue
		}
		if err := dropBound(i); err != nil {
			return err
		}
	}
	if caps&(1<<uint(SetPCap)) == 0 {
		if err := dropBound(SetPCap); err != nil {
			return err
		}
	}
	return nil
}

func dropBound(cap int) error {
	if err := unix.Prctl(unix.PR_CAPBSET_DROP, uintptr(cap), 0, 0, 0); err != nil {
		return fmt.Errorf("capability: PR_CAPBSET_DROP(%d): %w", cap, err)
	}
	return nil
}

func split(mask uint64) (lo, hi uint32) {
	return uint32(mask), uint32(mask >> 32)
}
