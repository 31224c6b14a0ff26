// Package transport owns the controller-facing channels of the HCI
// core: it brings up the CommandChannel eagerly, the ACLDataChannel
// lazily, and fans out a single transport-closed notification
// (spec.md §4.2).
package transport

import (
	"io"
)

// DeviceWrapper abstracts the byte-oriented channels a controller
// exposes. The real implementation wraps an HCI socket (in the manner
// of the teacher's internal/socket package); Sync and Test variants
// exist for single-threaded and in-memory use respectively.
type DeviceWrapper interface {
	// ControlChannel returns the command/event stream, or an error if
	// the controller could not be reached.
	ControlChannel() (io.ReadWriteCloser, error)

	// ACLChannel returns the ACL data stream. Transport only calls
	// this once buffer sizes have been queried from the controller.
	ACLChannel() (io.ReadWriteCloser, error)
}
