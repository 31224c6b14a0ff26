package advertiser

import (
	"github.com/braidwire/hcicore/address"
	"github.com/braidwire/hcicore/advhandle"
	"github.com/braidwire/hcicore/cmdchannel"
	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
	"github.com/braidwire/hcicore/packet"
	"github.com/braidwire/hcicore/seqrunner"
)

// pendingConnect holds an LE Connection Complete's role/peer until the
// paired LE Advertising Set Terminated event reveals which advertising
// handle it belongs to (spec.md §4.7).
type pendingConnect struct {
	role uint8
	peer address.DeviceAddress
}

// Extended is the multi-set variant of spec.md §4.7, backed by
// AdvertisingHandleMap. Fragmentation of advertising data beyond the
// legacy length limit is an open question this core does not
// implement (spec.md §9).
type Extended struct {
	cmds     *cmdchannel.CommandChannel
	delegate address.LocalAddressDelegate
	handles  *advhandle.HandleMap

	sets    map[uint8]*set
	pending map[uint16]pendingConnect
}

// NewExtended constructs an Extended advertiser with the given set
// capacity (see advhandle.HandleMap), self-registering the LE
// Connection Complete and LE Advertising Set Terminated handlers that
// together route a completed connection into OnIncomingConnection
// (spec.md §4.5/§4.7), mirroring scanner.New's registration pattern.
func NewExtended(cmds *cmdchannel.CommandChannel, delegate address.LocalAddressDelegate, capacity int) *Extended {
	e := &Extended{
		cmds:     cmds,
		delegate: delegate,
		handles:  advhandle.New(capacity),
		sets:     make(map[uint8]*set),
		pending:  make(map[uint16]pendingConnect),
	}
	cmds.RegisterLEEventHandler(hcidefs.LEConnectionComplete, e.handleConnectionComplete)
	cmds.RegisterLEEventHandler(hcidefs.LEAdvertisingSetTerminated, e.handleSetTerminated)
	return e
}

// StartAdvertising claims (or reuses) a handle for addr and runs the
// common start sequence (spec.md §4.7).
func (e *Extended) StartAdvertising(addr address.DeviceAddress, data, scanRsp []byte, opts Options, connectCb ConnectCallback, resultCb ResultCallback) {
	if err := validatePayloads(data, scanRsp); err != nil {
		resultCb(0, err)
		return
	}
	e.delegate.LocalAddress(func(resolved address.DeviceAddress, err error) {
		if err != nil {
			resultCb(0, err)
			return
		}
		handle, ok := e.handles.MapHandle(addr)
		if !ok {
			resultCb(0, herr.ErrInvalidParameters)
			return
		}
		existing := e.sets[handle]
		wasEnabled := existing != nil && existing.enabled

		runner := seqrunner.New(e.cmds)
		steps := startSequence(e.cmds, resolved, wasEnabled, opts, data, scanRsp)
		s := &set{addr: resolved, options: opts, data: data, scanRsp: scanRsp, connectCb: connectCb}
		e.sets[handle] = s
		runner.Run(steps, func(status herr.Status, err error) {
			if err != nil {
				s.enabled = false
				resultCb(status, err)
				return
			}
			s.enabled = true
			resultCb(herr.StatusSuccess, nil)
		})
	})
}

// StopAdvertising stops the set mapped to addr, if any.
func (e *Extended) StopAdvertising(addr address.DeviceAddress, resultCb ResultCallback) {
	handle, ok := e.handles.GetHandle(addr)
	if !ok {
		resultCb(herr.StatusSuccess, nil)
		return
	}
	e.stopHandle(handle, resultCb)
}

// StopAllAdvertising stops every active set.
func (e *Extended) StopAllAdvertising(resultCb ResultCallback) {
	for h := range e.sets {
		e.stopHandle(h, nil)
	}
	if resultCb != nil {
		resultCb(herr.StatusSuccess, nil)
	}
}

func (e *Extended) stopHandle(handle uint8, resultCb ResultCallback) {
	s, ok := e.sets[handle]
	if !ok || !s.enabled {
		if resultCb != nil {
			resultCb(herr.StatusSuccess, nil)
		}
		return
	}
	runner := seqrunner.New(e.cmds)
	runner.Run([]seqrunner.Step{{Packet: buildEnableCommand(false), ExpectedEvent: hcidefs.EventCommandComplete}}, func(status herr.Status, err error) {
		if err == nil {
			s.enabled = false
		}
		if resultCb != nil {
			resultCb(status, err)
		}
	})
}

// OnIncomingConnection routes by the LE Advertising Set Terminated
// event's handle, looked up by the caller before invoking this.
func (e *Extended) OnIncomingConnection(setHandle uint8, connHandle uint16, role uint8, peer address.DeviceAddress) {
	s, ok := e.sets[setHandle]
	if !ok || s.connectCb == nil {
		return
	}
	s.connectCb(connHandle, role, peer)
}

// handleConnectionComplete parses an LE Connection Complete subevent
// and stashes its role/peer, keyed by connection handle, until the
// paired LE Advertising Set Terminated event arrives. params has
// already had the subevent code stripped by CommandChannel's dispatch:
// Status(1), Connection_Handle(2), Role(1), Peer_Address_Type(1),
// Peer_Address(6), ...
func (e *Extended) handleConnectionComplete(params []byte) cmdchannel.EventAction {
	if len(params) < 11 || !herr.Status(params[0]).Ok() {
		return cmdchannel.Continue
	}
	handle := packet.LE.Uint16(params[1:3])
	e.pending[handle] = pendingConnect{
		role: params[3],
		peer: address.DeviceAddress{
			Type:  address.LEAddressTypeFromWire(params[4]),
			Bytes: packet.LE.MAC(params[5:11]),
		},
	}
	return cmdchannel.Continue
}

// handleSetTerminated parses an LE Advertising Set Terminated
// subevent, pairs it with the connection role/peer stashed by
// handleConnectionComplete, and routes into OnIncomingConnection.
// params layout: Status(1), Advertising_Handle(1), Connection_Handle(2),
// Num_Completed_Extended_Advertising_Events(1).
func (e *Extended) handleSetTerminated(params []byte) cmdchannel.EventAction {
	if len(params) < 4 || !herr.Status(params[0]).Ok() {
		return cmdchannel.Continue
	}
	setHandle := params[1]
	connHandle := packet.LE.Uint16(params[2:4])
	pc, ok := e.pending[connHandle]
	if !ok {
		return cmdchannel.Continue
	}
	delete(e.pending, connHandle)
	e.OnIncomingConnection(setHandle, connHandle, pc.role, pc.peer)
	return cmdchannel.Continue
}
