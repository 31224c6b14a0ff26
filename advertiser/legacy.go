package advertiser

import (
	"github.com/braidwire/hcicore/address"
	"github.com/braidwire/hcicore/cmdchannel"
	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
	"github.com/braidwire/hcicore/packet"
	"github.com/braidwire/hcicore/seqrunner"
)

// Legacy is the single-global-advertising-state variant of spec.md
// §4.7. Anonymous advertising is unsupported, per spec.
type Legacy struct {
	cmds     *cmdchannel.CommandChannel
	delegate address.LocalAddressDelegate
	runner   *seqrunner.Runner

	current *set
}

// NewLegacy constructs a Legacy advertiser driving commands over cmds,
// self-registering the LE Connection Complete handler that routes a
// completed connection into OnIncomingConnection (spec.md §4.5/§4.7),
// mirroring scanner.New's registration pattern.
func NewLegacy(cmds *cmdchannel.CommandChannel, delegate address.LocalAddressDelegate) *Legacy {
	l := &Legacy{cmds: cmds, delegate: delegate, runner: seqrunner.New(cmds)}
	cmds.RegisterLEEventHandler(hcidefs.LEConnectionComplete, l.handleConnectionComplete)
	return l
}

// StartAdvertising implements the common contract of spec.md §4.7.
// Starting with an address already advertising is an idempotent
// overwrite (stop, reconfigure, start).
func (l *Legacy) StartAdvertising(addr address.DeviceAddress, data, scanRsp []byte, opts Options, connectCb ConnectCallback, resultCb ResultCallback) {
	if opts.Anonymous {
		resultCb(0, herr.ErrInvalidParameters)
		return
	}
	if err := validatePayloads(data, scanRsp); err != nil {
		resultCb(0, err)
		return
	}
	l.delegate.LocalAddress(func(resolved address.DeviceAddress, err error) {
		if err != nil {
			resultCb(0, err)
			return
		}
		wasEnabled := l.current != nil && l.current.enabled
		steps := startSequence(l.cmds, resolved, wasEnabled, opts, data, scanRsp)
		l.current = &set{addr: resolved, options: opts, data: data, scanRsp: scanRsp, connectCb: connectCb}
		l.runner.Run(steps, func(status herr.Status, err error) {
			if err != nil {
				l.current.enabled = false
				resultCb(status, err)
				return
			}
			l.current.enabled = true
			resultCb(herr.StatusSuccess, nil)
		})
	})
}

// StopAdvertising disables the single global set, if any. It takes no
// address: whichever set is active is stopped.
func (l *Legacy) StopAdvertising(resultCb ResultCallback) {
	if l.current == nil || !l.current.enabled {
		if resultCb != nil {
			resultCb(herr.StatusSuccess, nil)
		}
		return
	}
	l.runner.Run([]seqrunner.Step{{Packet: buildEnableCommand(false), ExpectedEvent: hcidefs.EventCommandComplete}}, func(status herr.Status, err error) {
		if err == nil {
			l.current.enabled = false
		}
		if resultCb != nil {
			resultCb(status, err)
		}
	})
}

// OnIncomingConnection routes a completed connection to the currently
// advertising set's connect callback (spec.md §4.7).
func (l *Legacy) OnIncomingConnection(handle uint16, role uint8, peer address.DeviceAddress) {
	if l.current == nil || !l.current.enabled || l.current.connectCb == nil {
		return
	}
	l.current.connectCb(handle, role, peer)
}

// handleConnectionComplete parses an LE Connection Complete subevent
// and routes it to OnIncomingConnection. params has already had the
// subevent code stripped by CommandChannel's dispatch: Status(1),
// Connection_Handle(2), Role(1), Peer_Address_Type(1),
// Peer_Address(6), ...
func (l *Legacy) handleConnectionComplete(params []byte) cmdchannel.EventAction {
	if len(params) < 11 || !herr.Status(params[0]).Ok() {
		return cmdchannel.Continue
	}
	handle := packet.LE.Uint16(params[1:3])
	role := params[3]
	peer := address.DeviceAddress{
		Type:  address.LEAddressTypeFromWire(params[4]),
		Bytes: packet.LE.MAC(params[5:11]),
	}
	l.OnIncomingConnection(handle, role, peer)
	return cmdchannel.Continue
}
