// Package advertiser implements the Advertiser family of spec.md §4.7:
// a common start/stop sequence over a SequentialCommandRunner, with
// legacy (single global set) and extended (AdvertisingHandleMap-backed)
// variants.
package advertiser

import (
	"github.com/braidwire/hcicore/address"
	"github.com/braidwire/hcicore/cmdchannel"
	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
	"github.com/braidwire/hcicore/packet"
	"github.com/braidwire/hcicore/seqrunner"
)

// kMaxLEAdvertisingDataLength bounds legacy advertising/scan-response
// payloads (spec.md §9); larger payloads are this core's declared
// non-goal for fragmentation.
const kMaxLEAdvertisingDataLength = 31

// FilterPolicy mirrors the controller's LE advertising filter policy
// field.
type FilterPolicy uint8

// Options configures one advertising set (spec.md §4.7).
type Options struct {
	IntervalMin           uint16
	IntervalMax           uint16
	Anonymous             bool
	IncludeTxPowerLevel   bool
	FilterPolicy          FilterPolicy
	Connectable           bool
	Scannable             bool
}

// ConnectCallback is invoked when a peer connects to an advertised set.
type ConnectCallback func(handle uint16, role uint8, peer address.DeviceAddress)

// ResultCallback reports the outcome of Start/StopAdvertising.
type ResultCallback func(herr.Status, error)

// set tracks one advertising set's local state.
type set struct {
	addr       address.DeviceAddress
	options    Options
	data       []byte
	scanRsp    []byte
	enabled    bool
	connectCb  ConnectCallback
}

func validatePayloads(data, scanRsp []byte) error {
	if len(data) > kMaxLEAdvertisingDataLength || len(scanRsp) > kMaxLEAdvertisingDataLength {
		return herr.ErrInvalidParameters
	}
	return nil
}

func buildParamsCommand(addr address.DeviceAddress, opts Options) *packet.Packet {
	pkt := packet.NewCommandPacket(hcidefs.OpLESetAdvertisingParameters, 15)
	body := pkt.MutablePayload()
	packet.LE.PutUint16(body[0:2], opts.IntervalMin)
	packet.LE.PutUint16(body[2:4], opts.IntervalMax)
	advType := byte(0x03) // ADV_NONCONN_IND
	switch {
	case opts.Connectable:
		advType = 0x00 // ADV_IND
	case opts.Scannable:
		advType = 0x02 // ADV_SCAN_IND
	}
	body[4] = advType
	if addr.Type == address.LERandom {
		body[5] = 0x01 // own address type: random
	}
	body[13] = byte(opts.FilterPolicy)
	_ = body[14]
	return pkt
}

func buildDataCommand(data []byte) *packet.Packet {
	pkt := packet.NewCommandPacket(hcidefs.OpLESetAdvertisingData, 32)
	body := pkt.MutablePayload()
	body[0] = byte(len(data))
	copy(body[1:], data)
	return pkt
}

func buildScanRspCommand(scanRsp []byte) *packet.Packet {
	pkt := packet.NewCommandPacket(hcidefs.OpLESetScanResponseData, 32)
	body := pkt.MutablePayload()
	body[0] = byte(len(scanRsp))
	copy(body[1:], scanRsp)
	return pkt
}

func buildEnableCommand(enable bool) *packet.Packet {
	pkt := packet.NewCommandPacket(hcidefs.OpLESetAdvertiseEnable, 1)
	if enable {
		pkt.MutablePayload()[0] = 1
	}
	return pkt
}

func startSequence(cmds *cmdchannel.CommandChannel, addr address.DeviceAddress, wasEnabled bool, opts Options, data, scanRsp []byte) []seqrunner.Step {
	var steps []seqrunner.Step
	if wasEnabled {
		steps = append(steps, seqrunner.Step{Packet: buildEnableCommand(false), ExpectedEvent: hcidefs.EventCommandComplete})
	}
	steps = append(steps,
		seqrunner.Step{Packet: buildParamsCommand(addr, opts), ExpectedEvent: hcidefs.EventCommandComplete},
		seqrunner.Step{Packet: buildDataCommand(data), ExpectedEvent: hcidefs.EventCommandComplete},
	)
	if opts.Scannable {
		steps = append(steps, seqrunner.Step{Packet: buildScanRspCommand(scanRsp), ExpectedEvent: hcidefs.EventCommandComplete})
	}
	steps = append(steps, seqrunner.Step{Packet: buildEnableCommand(true), ExpectedEvent: hcidefs.EventCommandComplete})
	return steps
}
