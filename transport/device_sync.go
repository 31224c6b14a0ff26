package transport

import "io"

// SyncDeviceWrapper hands out channels that have already been opened
// by the caller — used when channel setup must happen synchronously
// on the caller's thread (e.g. during device enumeration) before the
// asynchronous Transport takes ownership.
type SyncDeviceWrapper struct {
	control io.ReadWriteCloser
	acl     io.ReadWriteCloser
}

// NewSyncDeviceWrapper wraps pre-opened channels.
func NewSyncDeviceWrapper(control, acl io.ReadWriteCloser) *SyncDeviceWrapper {
	return &SyncDeviceWrapper{control: control, acl: acl}
}

// ControlChannel implements DeviceWrapper.
func (s *SyncDeviceWrapper) ControlChannel() (io.ReadWriteCloser, error) {
	return s.control, nil
}

// ACLChannel implements DeviceWrapper.
func (s *SyncDeviceWrapper) ACLChannel() (io.ReadWriteCloser, error) {
	return s.acl, nil
}
