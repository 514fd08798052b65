package rootfs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// LoopDeviceOwner attaches a backing image file to a pre-allocated loop
// device index. Index allocation itself belongs to the external rootfs
// subsystem named in spec §6; this engine only attaches/detaches the
// index it is handed.
type LoopDeviceOwner interface {
	Attach(imagePath string, index int) (devicePath string, err error)
	Detach(index int) error
}

// fsLoopOwner implements LoopDeviceOwner against /dev/loop<N> via the
// LOOP_SET_FD ioctl, the standard Linux loop device attach sequence.
type fsLoopOwner struct{}

// Loop is the default LoopDeviceOwner.
var Loop LoopDeviceOwner = fsLoopOwner{}

func (fsLoopOwner) Attach(imagePath string, index int) (string, error) {
	devicePath := fmt.Sprintf("/dev/loop%d", index)

	img, err := os.OpenFile(imagePath, os.O_RDWR, 0)
	if err != nil {
		return "", fmt.Errorf("rootfs: open loop image %s: %w", imagePath, err)
	}
	defer img.Close()

	dev, err := os.OpenFile(devicePath, os.O_RDWR, 0)
	if err != nil {
		return "", fmt.Errorf("rootfs: open %s: %w", devicePath, err)
	}
	defer dev.Close()

	if err := unix.IoctlSetInt(int(dev.Fd()), unix.LOOP_SET_FD, int(img.Fd())); err != nil {
		return "", fmt.Errorf("rootfs: LOOP_SET_FD %s: %w", devicePath, err)
	}
	return devicePath, nil
}

func (fsLoopOwner) Detach(index int) error {
	devicePath := fmt.Sprintf("/dev/loop%d", index)
	dev, err := os.OpenFile(devicePath, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("rootfs: open %s: %w", devicePath, err)
	}
	defer dev.Close()
	if err := unix.IoctlSetInt(int(dev.Fd()), unix.LOOP_CLR_FD, 0); err != nil {
		return fmt.Errorf("rootfs: LOOP_CLR_FD %s: %w", devicePath, err)
	}
	return nil
}

// mountLoop attaches the ext4 image at image to loop device index and
// mounts it at root, releasing the loop device on mount failure so the
// caller-owned index is not leaked (spec §5 resource ownership).
func mountLoop(owner LoopDeviceOwner, image string, index int, root string, rdonly bool) error {
	devicePath, err := owner.Attach(image, index)
	if err != nil {
		return err
	}
	flags := uintptr(0)
	if rdonly {
		flags = unix.MS_RDONLY
	}
	m := Mount{Source: devicePath, Target: root, FsType: "ext4", Flags: flags}
	if err := m.Mount(); err != nil {
		if derr := owner.Detach(index); derr != nil {
			return fmt.Errorf("%w (also failed to release loop device: %v)", err, derr)
		}
		return err
	}
	return nil
}
