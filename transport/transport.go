package transport

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/braidwire/hcicore/acldata"
	"github.com/braidwire/hcicore/cmdchannel"
	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/packet"
)

// Transport owns the controller-facing channels: it constructs the
// CommandChannel immediately and the ACLDataChannel lazily, once the
// host has learned the controller's buffer sizes (spec.md §4.2).
type Transport struct {
	log    *logrus.Entry
	dev    DeviceWrapper
	cmds   *cmdchannel.CommandChannel
	acl    io.ReadWriteCloser
	aclCh  *acldata.ACLDataChannel

	mu         sync.Mutex
	closedOnce sync.Once
	closedCb   func(error)
}

// New constructs a Transport over dev, bringing up the control channel
// right away. Construction fails if the control channel cannot be
// obtained (spec.md §4.2).
func New(dev DeviceWrapper, log *logrus.Entry, closedCb func(error)) (*Transport, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	control, err := dev.ControlChannel()
	if err != nil {
		return nil, err
	}
	t := &Transport{
		log:      log.WithField("component", "transport"),
		dev:      dev,
		closedCb: closedCb,
	}
	t.cmds = cmdchannel.New(control, t.log, t.onSubChannelClosed)
	return t, nil
}

// CommandChannel returns the transport's command/event channel.
func (t *Transport) CommandChannel() *cmdchannel.CommandChannel { return t.cmds }

// EnsureACLDataChannel lazily opens the ACL channel and constructs the
// ACLDataChannel once buffer sizes are known, per spec.md §4.2. Safe
// to call more than once; subsequent calls return the existing channel.
func (t *Transport) EnsureACLDataChannel(brEdr, le acldata.DataBufferInfo) (*acldata.ACLDataChannel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.aclCh != nil {
		return t.aclCh, nil
	}
	acl, err := t.dev.ACLChannel()
	if err != nil {
		return nil, err
	}
	t.acl = acl
	t.aclCh = acldata.New(acl, brEdr, le, t.log, t.onSubChannelClosed)
	t.cmds.RegisterEventHandler(hcidefs.EventNumberOfCompletedPkts, t.handleNumberOfCompletedPackets)
	return t.aclCh, nil
}

// handleNumberOfCompletedPackets parses Number Of Completed Packets
// and forwards the per-handle credit counts to the ACL data channel,
// the restoration path spec.md §4.4 requires to keep outbound ACL
// traffic flowing once the initial credit grant is exhausted.
func (t *Transport) handleNumberOfCompletedPackets(params []byte) cmdchannel.EventAction {
	if len(params) < 1 {
		return cmdchannel.Continue
	}
	n := int(params[0])
	if len(params) < 1+4*n {
		return cmdchannel.Continue
	}
	handles := make([]uint16, n)
	counts := make([]uint16, n)
	off := 1
	for i := 0; i < n; i++ {
		handles[i] = packet.LE.Uint16(params[off : off+2])
		counts[i] = packet.LE.Uint16(params[off+2 : off+4])
		off += 4
	}
	t.mu.Lock()
	aclCh := t.aclCh
	t.mu.Unlock()
	if aclCh != nil {
		aclCh.HandleNumberOfCompletedPackets(n, handles, counts)
	}
	return cmdchannel.Continue
}

func (t *Transport) onSubChannelClosed(err error) {
	first := false
	t.closedOnce.Do(func() { first = true })
	if !first {
		return
	}
	t.log.WithError(err).Warn("sub-channel closed, tearing down transport")
	t.mu.Lock()
	aclCh := t.aclCh
	t.mu.Unlock()
	t.cmds.Close()
	if aclCh != nil {
		aclCh.Close()
	}
	if t.closedCb != nil {
		t.closedCb(err)
	}
}

// Close shuts the transport down idempotently; safe to call from the
// closed callback itself.
func (t *Transport) Close() {
	t.onSubChannelClosed(nil)
}
