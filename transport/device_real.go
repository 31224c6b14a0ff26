//go:build linux

package transport

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// RealDeviceWrapper opens the HCI_CHANNEL_RAW and HCI_CHANNEL_RAW
// (ACL) sockets for a named controller, in the manner of the teacher's
// linux/internal/socket package — rebuilt on golang.org/x/sys/unix
// instead of hand-rolled syscall wrappers.
type RealDeviceWrapper struct {
	devID int
}

// NewRealDeviceWrapper targets the controller at /dev/hciN.
func NewRealDeviceWrapper(devID int) *RealDeviceWrapper {
	return &RealDeviceWrapper{devID: devID}
}

func (r *RealDeviceWrapper) openChannel(channel uint16) (io.ReadWriteCloser, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return nil, fmt.Errorf("transport: open hci socket: %w", err)
	}
	sa := &unix.SockaddrHCI{Dev: r.devID, Channel: channel}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: bind hci socket: %w", err)
	}
	return os.NewFile(uintptr(fd), fmt.Sprintf("hci%d", r.devID)), nil
}

// ControlChannel implements DeviceWrapper.
func (r *RealDeviceWrapper) ControlChannel() (io.ReadWriteCloser, error) {
	return r.openChannel(unix.HCI_CHANNEL_RAW)
}

// ACLChannel implements DeviceWrapper.
func (r *RealDeviceWrapper) ACLChannel() (io.ReadWriteCloser, error) {
	return r.openChannel(unix.HCI_CHANNEL_RAW)
}
