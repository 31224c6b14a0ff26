package connection

import (
	"github.com/braidwire/hcicore/acldata"
	"github.com/braidwire/hcicore/address"
	"github.com/braidwire/hcicore/cmdchannel"
	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
	"github.com/braidwire/hcicore/packet"
)

// LEConnectionParameters mirrors the controller's current LE
// connection interval/latency/timeout for a link (spec.md §4.5).
type LEConnectionParameters struct {
	IntervalMin uint16
	IntervalMax uint16
	Latency     uint16
	Timeout     uint16
}

// LowEnergyConnection is the LE specialization of AclShared.
type LowEnergyConnection struct {
	AclShared

	cmds *cmdchannel.CommandChannel
	ltk  *[16]byte

	params          LEConnectionParameters
	onParamsUpdated func(LEConnectionParameters)
}

// NewLowEnergyConnection constructs an LE connection bound to handle,
// populated from the LE Connection Complete event that created it
// (spec.md §3, §4.5), sending subsequent commands over cmds, and
// self-registers the event handlers that drive its lifecycle,
// mirroring scanner.New's registration pattern.
func NewLowEnergyConnection(handle uint16, local, peer address.DeviceAddress, role Role, cmds *cmdchannel.CommandChannel) *LowEnergyConnection {
	c := &LowEnergyConnection{
		AclShared: newAclShared(handle, local, peer, role, acldata.LinkLE),
		cmds:      cmds,
	}
	cmds.RegisterEventHandler(hcidefs.EventDisconnectionComplete, c.handleDisconnectionCompleteEvent)
	cmds.RegisterEventHandler(hcidefs.EventEncryptionChange, c.handleEncryptionChangeEvent)
	cmds.RegisterLEEventHandler(hcidefs.LELTKRequest, c.handleLongTermKeyRequestEvent)
	return c
}

// SetLTK installs (or clears, with nil) the long-term key known for
// this peer.
func (c *LowEnergyConnection) SetLTK(ltk *[16]byte) { c.ltk = ltk }

// OnParametersUpdated registers the forward-to-GAP signal for
// connection-parameter changes.
func (c *LowEnergyConnection) OnParametersUpdated(cb func(LEConnectionParameters)) {
	c.onParamsUpdated = cb
}

// HandleConnectionUpdateComplete records new parameters and forwards
// the change.
func (c *LowEnergyConnection) HandleConnectionUpdateComplete(p LEConnectionParameters) {
	c.params = p
	if c.onParamsUpdated != nil {
		c.onParamsUpdated(p)
	}
}

// StartEncryption implements Connection. Valid only when encryption is
// OFF and an LTK is known; returns false synchronously without
// touching the controller otherwise (spec.md §4.5, §8 scenario #5).
func (c *LowEnergyConnection) StartEncryption() bool {
	if c.ltk == nil {
		return false
	}
	if !c.setEncryptionPending() {
		return false
	}
	pkt := packet.NewCommandPacket(hcidefs.OpLEStartEncryption, 28)
	body := pkt.MutablePayload()
	packet.LE.PutUint16(body[0:2], c.Handle())
	copy(body[10:26], c.ltk[:])
	_, err := c.cmds.Send(pkt, hcidefs.EventCommandStatus, func(res cmdchannel.Result) {
		if res.Err != nil || !res.Status.Ok() {
			c.finishEncryption(false, res.Err)
		}
	})
	if err != nil {
		c.finishEncryption(false, err)
		return false
	}
	return true
}

// HandleEncryptionChange applies an Encryption Change / Encryption Key
// Refresh Complete event.
func (c *LowEnergyConnection) HandleEncryptionChange(status herr.Status, enabled bool) {
	if !status.Ok() {
		c.finishEncryption(false, status.Err())
		return
	}
	c.finishEncryption(enabled, nil)
}

// HandleLongTermKeyRequest answers an LE Long Term Key Request event,
// replying with the known LTK or a negative reply (spec.md §4.5).
func (c *LowEnergyConnection) HandleLongTermKeyRequest() {
	if c.ltk != nil {
		pkt := packet.NewCommandPacket(hcidefs.OpLELTKReply, 18)
		body := pkt.MutablePayload()
		packet.LE.PutUint16(body[0:2], c.Handle())
		copy(body[2:18], c.ltk[:])
		c.cmds.Send(pkt, hcidefs.EventCommandComplete, func(cmdchannel.Result) {})
		return
	}
	pkt := packet.NewCommandPacket(hcidefs.OpLELTKNegReply, 2)
	packet.LE.PutUint16(pkt.MutablePayload(), c.Handle())
	c.cmds.Send(pkt, hcidefs.EventCommandComplete, func(cmdchannel.Result) {})
}

// Disconnect implements Connection.
func (c *LowEnergyConnection) Disconnect() {
	pkt := packet.NewCommandPacket(hcidefs.OpDisconnect, 3)
	body := pkt.MutablePayload()
	packet.LE.PutUint16(body[0:2], c.Handle())
	body[2] = 0x13 // remote user terminated connection
	c.cmds.Send(pkt, hcidefs.EventCommandStatus, func(cmdchannel.Result) {})
}

// handleDisconnectionCompleteEvent filters Disconnection Complete by
// connection handle; once it fires for this handle the connection is
// permanently done, so the handler removes itself.
func (c *LowEnergyConnection) handleDisconnectionCompleteEvent(params []byte) cmdchannel.EventAction {
	if len(params) < 4 {
		return cmdchannel.Continue
	}
	handle := packet.LE.Uint16(params[1:3])
	if handle != c.Handle() {
		return cmdchannel.Continue
	}
	c.HandleDisconnectionComplete()
	return cmdchannel.RemoveMe
}

// handleEncryptionChangeEvent filters Encryption Change by connection
// handle.
func (c *LowEnergyConnection) handleEncryptionChangeEvent(params []byte) cmdchannel.EventAction {
	if c.closed() {
		return cmdchannel.RemoveMe
	}
	if len(params) < 4 {
		return cmdchannel.Continue
	}
	handle := packet.LE.Uint16(params[1:3])
	if handle != c.Handle() {
		return cmdchannel.Continue
	}
	c.HandleEncryptionChange(herr.Status(params[0]), params[3] != 0)
	return cmdchannel.Continue
}

// handleLongTermKeyRequestEvent filters the LE Long Term Key Request
// subevent by connection handle. params has already had the subevent
// code stripped by CommandChannel's dispatch.
func (c *LowEnergyConnection) handleLongTermKeyRequestEvent(params []byte) cmdchannel.EventAction {
	if c.closed() {
		return cmdchannel.RemoveMe
	}
	if len(params) < 2 {
		return cmdchannel.Continue
	}
	handle := packet.LE.Uint16(params[0:2])
	if handle != c.Handle() {
		return cmdchannel.Continue
	}
	c.HandleLongTermKeyRequest()
	return cmdchannel.Continue
}
