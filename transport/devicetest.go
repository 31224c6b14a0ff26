package transport

import (
	"errors"
	"io"
)

// pipeEndpoint is an in-memory io.ReadWriteCloser used by TestDeviceWrapper.
type pipeEndpoint struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	closed bool
}

func (p *pipeEndpoint) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeEndpoint) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeEndpoint) Close() error {
	p.closed = true
	p.r.Close()
	return p.w.Close()
}

// TestDeviceWrapper hands back in-process pipes and exposes the peer
// ends so a test can simulate a controller without any real socket.
type TestDeviceWrapper struct {
	controlHost, controlPeer *pipeEndpoint
	aclHost, aclPeer         *pipeEndpoint
	failControl, failACL     bool
}

// NewTestDeviceWrapper constructs a wrapper whose channels are wired
// to in-process pipes. The returned peer endpoints simulate controller
// behavior in tests.
func NewTestDeviceWrapper() (w *TestDeviceWrapper, controlPeer, aclPeer io.ReadWriteCloser) {
	cr, cw := io.Pipe()
	pr, pw := io.Pipe()
	control := &pipeEndpoint{r: cr, w: pw}
	controlP := &pipeEndpoint{r: pr, w: cw}

	ar, aw := io.Pipe()
	qr, qw := io.Pipe()
	acl := &pipeEndpoint{r: ar, w: qw}
	aclP := &pipeEndpoint{r: qr, w: aw}

	w = &TestDeviceWrapper{controlHost: control, controlPeer: controlP, aclHost: acl, aclPeer: aclP}
	return w, controlP, aclP
}

// FailControlChannel makes the next ControlChannel call return an error.
func (w *TestDeviceWrapper) FailControlChannel() { w.failControl = true }

// FailACLChannel makes the next ACLChannel call return an error.
func (w *TestDeviceWrapper) FailACLChannel() { w.failACL = true }

// ControlChannel implements DeviceWrapper.
func (w *TestDeviceWrapper) ControlChannel() (io.ReadWriteCloser, error) {
	if w.failControl {
		return nil, errors.New("transport: test control channel unavailable")
	}
	return w.controlHost, nil
}

// ACLChannel implements DeviceWrapper.
func (w *TestDeviceWrapper) ACLChannel() (io.ReadWriteCloser, error) {
	if w.failACL {
		return nil, errors.New("transport: test acl channel unavailable")
	}
	return w.aclHost, nil
}
