// Package connection implements the Connection family of spec.md §4.5:
// a shared ACL lifecycle plus BR/EDR and LE specializations, modeled
// as a small interface with a composed shared struct rather than the
// source's class hierarchy (spec.md §9).
package connection

import (
	"sync"

	"github.com/braidwire/hcicore/acldata"
	"github.com/braidwire/hcicore/address"
	"github.com/braidwire/hcicore/herr"
)

// State is the connection's open/closed lifecycle.
type State int

const (
	Open State = iota
	Closed
)

// EncryptionState tracks link encryption per spec.md §4.5.
type EncryptionState int

const (
	EncryptionOff EncryptionState = iota
	EncryptionPending
	EncryptionOn
)

// EncryptionResult is delivered to the encryption-change callback.
type EncryptionResult struct {
	Enabled bool
	Err     error
}

// Role is the local side's part in a connection: central/master
// (the side that initiated it) or peripheral/slave (the side that
// accepted it), per spec.md §3's "central/peripheral or
// initiator/responder" requirement.
type Role uint8

const (
	Central Role = iota
	Peripheral
)

// RoleFromWire maps the controller's Connection-Complete / LE
// Connection-Complete Role octet (0x00 central/master, 0x01
// peripheral/slave) to Role.
func RoleFromWire(wire uint8) Role {
	if wire == 0x01 {
		return Peripheral
	}
	return Central
}

// Connection is the capability surface every concrete connection type
// implements; Transport and the advertiser/scanner state machines
// depend only on this trait (spec.md §9).
type Connection interface {
	Handle() uint16
	State() State
	EncryptionState() EncryptionState
	LocalAddress() address.DeviceAddress
	PeerAddress() address.DeviceAddress
	Role() Role
	LinkType() acldata.LinkType
	StartEncryption() bool
	Disconnect()
}

// AclShared is composed into BrEdrConnection and LowEnergyConnection;
// it holds the state every ACL-based connection needs regardless of
// physical transport. The identity fields (addresses, role, link
// type) are fixed at construction time from the Connection-Complete
// event that created the connection (spec.md §3) and never change.
type AclShared struct {
	mu sync.Mutex

	handle   uint16
	state    State
	enc      EncryptionState
	local    address.DeviceAddress
	peer     address.DeviceAddress
	role     Role
	linkType acldata.LinkType

	onEncryptionChange func(EncryptionResult)
	onDisconnect       func()
	disconnectFired    bool
}

func newAclShared(handle uint16, local, peer address.DeviceAddress, role Role, lt acldata.LinkType) AclShared {
	return AclShared{
		handle:   handle,
		state:    Open,
		enc:      EncryptionOff,
		local:    local,
		peer:     peer,
		role:     role,
		linkType: lt,
	}
}

// Handle implements Connection.
func (a *AclShared) Handle() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handle
}

// State implements Connection.
func (a *AclShared) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// EncryptionState implements Connection.
func (a *AclShared) EncryptionState() EncryptionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enc
}

// LocalAddress implements Connection.
func (a *AclShared) LocalAddress() address.DeviceAddress { return a.local }

// PeerAddress implements Connection.
func (a *AclShared) PeerAddress() address.DeviceAddress { return a.peer }

// Role implements Connection.
func (a *AclShared) Role() Role { return a.role }

// LinkType implements Connection.
func (a *AclShared) LinkType() acldata.LinkType { return a.linkType }

// OnEncryptionChange registers the callback fired when the controller
// reports Encryption Change or Encryption Key Refresh Complete.
func (a *AclShared) OnEncryptionChange(cb func(EncryptionResult)) {
	a.mu.Lock()
	a.onEncryptionChange = cb
	a.mu.Unlock()
}

// OnDisconnect registers the callback fired exactly once when
// Disconnection Complete arrives for this handle.
func (a *AclShared) OnDisconnect(cb func()) {
	a.mu.Lock()
	a.onDisconnect = cb
	a.mu.Unlock()
}

// HandleDisconnectionComplete moves the connection to Closed and fires
// the disconnect callback exactly once (spec.md §4.5).
func (a *AclShared) HandleDisconnectionComplete() {
	a.mu.Lock()
	a.state = Closed
	already := a.disconnectFired
	a.disconnectFired = true
	cb := a.onDisconnect
	a.mu.Unlock()
	if !already && cb != nil {
		cb()
	}
}

// closed reports whether Disconnection Complete has already been
// applied, so a self-registered handler can stop reprocessing events
// for a handle the controller may reuse for an unrelated connection.
func (a *AclShared) closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == Closed
}

func (a *AclShared) setEncryptionPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enc != EncryptionOff {
		return false
	}
	a.enc = EncryptionPending
	return true
}

func (a *AclShared) finishEncryption(ok bool, err error) {
	a.mu.Lock()
	if ok {
		a.enc = EncryptionOn
	} else {
		a.enc = EncryptionOff
	}
	cb := a.onEncryptionChange
	a.mu.Unlock()
	if cb != nil {
		cb(EncryptionResult{Enabled: ok, Err: err})
	}
}

var errNoLTK = herr.ErrNotReady
