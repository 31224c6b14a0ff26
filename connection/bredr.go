package connection

import (
	"github.com/braidwire/hcicore/acldata"
	"github.com/braidwire/hcicore/address"
	"github.com/braidwire/hcicore/cmdchannel"
	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
	"github.com/braidwire/hcicore/packet"
)

// LinkKeyType mirrors the controller's HCI Link_Key_Type values.
type LinkKeyType uint8

// minEncryptionKeySize is the smallest encryption key size (in octets)
// this core accepts before surfacing InsufficientSecurity, per the
// BR/EDR key-size-validation requirement of spec.md §4.5.
const minEncryptionKeySize = 7

// BrEdrConnection is the BR/EDR specialization of AclShared.
type BrEdrConnection struct {
	AclShared

	cmds *cmdchannel.CommandChannel

	linkKey     *[16]byte
	linkKeyType LinkKeyType
	keySize     int
}

// NewBrEdrConnection constructs a BR/EDR connection bound to handle,
// populated from the Connection Complete event that created it
// (spec.md §3, §4.5), and self-registers the event handlers that drive
// its lifecycle, mirroring scanner.New's registration pattern.
func NewBrEdrConnection(handle uint16, local, peer address.DeviceAddress, role Role, cmds *cmdchannel.CommandChannel) *BrEdrConnection {
	c := &BrEdrConnection{
		AclShared: newAclShared(handle, local, peer, role, acldata.LinkBREDR),
		cmds:      cmds,
	}
	cmds.RegisterEventHandler(hcidefs.EventDisconnectionComplete, c.handleDisconnectionCompleteEvent)
	cmds.RegisterEventHandler(hcidefs.EventEncryptionChange, c.handleEncryptionChangeEvent)
	cmds.RegisterEventHandler(hcidefs.EventEncryptionKeyRefreshComplete, c.handleEncryptionKeyRefreshEvent)
	cmds.RegisterEventHandler(hcidefs.EventLinkKeyRequest, c.handleLinkKeyRequestEvent)
	return c
}

// SetLinkKey installs the peer's link key and type.
func (c *BrEdrConnection) SetLinkKey(key *[16]byte, kt LinkKeyType) {
	c.linkKey = key
	c.linkKeyType = kt
}

// StartEncryption implements Connection: Authentication Requested
// followed by Set Connection Encryption, per spec.md §4.5.
func (c *BrEdrConnection) StartEncryption() bool {
	if c.linkKey == nil {
		return false
	}
	if !c.setEncryptionPending() {
		return false
	}
	auth := packet.NewCommandPacket(hcidefs.OpAuthRequested, 2)
	packet.LE.PutUint16(auth.MutablePayload(), c.Handle())
	_, err := c.cmds.Send(auth, hcidefs.EventCommandStatus, func(res cmdchannel.Result) {
		if res.Err != nil || !res.Status.Ok() {
			c.finishEncryption(false, res.Err)
			return
		}
		c.setConnectionEncryption()
	})
	if err != nil {
		c.finishEncryption(false, err)
		return false
	}
	return true
}

func (c *BrEdrConnection) setConnectionEncryption() {
	pkt := packet.NewCommandPacket(hcidefs.OpSetConnEncrypt, 3)
	body := pkt.MutablePayload()
	packet.LE.PutUint16(body[0:2], c.Handle())
	body[2] = 0x01 // enable
	c.cmds.Send(pkt, hcidefs.EventCommandStatus, func(res cmdchannel.Result) {
		if res.Err != nil || !res.Status.Ok() {
			c.finishEncryption(false, res.Err)
		}
	})
}

// HandleEncryptionKeySize records the negotiated encryption key size,
// to be validated once Encryption Change arrives.
func (c *BrEdrConnection) HandleEncryptionKeySize(size int) {
	c.keySize = size
}

// HandleEncryptionChange applies an Encryption Change event, failing
// with InsufficientSecurity if the negotiated key size is too small
// (spec.md §4.5).
func (c *BrEdrConnection) HandleEncryptionChange(status herr.Status, enabled bool) {
	if !status.Ok() {
		c.finishEncryption(false, status.Err())
		return
	}
	if enabled && c.keySize != 0 && c.keySize < minEncryptionKeySize {
		c.finishEncryption(false, herr.ErrInsufficientSecurity)
		return
	}
	c.finishEncryption(enabled, nil)
}

// HandleLinkKeyRequest answers a Link Key Request event with the key
// installed by SetLinkKey, or a negative reply when none is installed,
// mirroring the LE LTK-request flow (spec.md §4.5).
func (c *BrEdrConnection) HandleLinkKeyRequest(bdAddr [6]byte) {
	if c.linkKey != nil {
		pkt := packet.NewCommandPacket(hcidefs.OpLinkKeyReply, 22)
		body := pkt.MutablePayload()
		packet.LE.PutMAC(body[0:6], bdAddr)
		copy(body[6:22], c.linkKey[:])
		c.cmds.Send(pkt, hcidefs.EventCommandComplete, func(cmdchannel.Result) {})
		return
	}
	pkt := packet.NewCommandPacket(hcidefs.OpLinkKeyNegReply, 6)
	packet.LE.PutMAC(pkt.MutablePayload(), bdAddr)
	c.cmds.Send(pkt, hcidefs.EventCommandComplete, func(cmdchannel.Result) {})
}

// Disconnect implements Connection.
func (c *BrEdrConnection) Disconnect() {
	pkt := packet.NewCommandPacket(hcidefs.OpDisconnect, 3)
	body := pkt.MutablePayload()
	packet.LE.PutUint16(body[0:2], c.Handle())
	body[2] = 0x13
	c.cmds.Send(pkt, hcidefs.EventCommandStatus, func(cmdchannel.Result) {})
}

// handleDisconnectionCompleteEvent filters Disconnection Complete by
// connection handle; once it fires for this handle the connection is
// permanently done, so the handler removes itself.
func (c *BrEdrConnection) handleDisconnectionCompleteEvent(params []byte) cmdchannel.EventAction {
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
func (c *BrEdrConnection) handleEncryptionChangeEvent(params []byte) cmdchannel.EventAction {
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

// handleEncryptionKeyRefreshEvent filters Encryption Key Refresh
// Complete by connection handle; a refresh leaves encryption on.
func (c *BrEdrConnection) handleEncryptionKeyRefreshEvent(params []byte) cmdchannel.EventAction {
	if c.closed() {
		return cmdchannel.RemoveMe
	}
	if len(params) < 3 {
		return cmdchannel.Continue
	}
	handle := packet.LE.Uint16(params[1:3])
	if handle != c.Handle() {
		return cmdchannel.Continue
	}
	c.HandleEncryptionChange(herr.Status(params[0]), true)
	return cmdchannel.Continue
}

// handleLinkKeyRequestEvent filters Link Key Request by peer address,
// the event's only identifying field.
func (c *BrEdrConnection) handleLinkKeyRequestEvent(params []byte) cmdchannel.EventAction {
	if c.closed() {
		return cmdchannel.RemoveMe
	}
	if len(params) < 6 {
		return cmdchannel.Continue
	}
	bdAddr := packet.LE.MAC(params[0:6])
	if bdAddr != c.PeerAddress().Bytes {
		return cmdchannel.Continue
	}
	c.HandleLinkKeyRequest(bdAddr)
	return cmdchannel.Continue
}
