// Package packet implements typed views over contiguous byte buffers
// for HCI commands, events, and ACL/SCO data, per spec.md §3–§4.1.
//
// A Packet owns a single backing buffer sized from one of three pools
// (packet/pool.go); that pooling is a performance tactic, not part of
// the contract, so nothing outside this package observes which class
// backed an allocation.
package packet

import (
	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
)

// Kind distinguishes the four packet shapes this core moves between
// the host and the controller.
type Kind uint8

const (
	KindCommand Kind = iota
	KindEvent
	KindACLData
	KindSCOData
)

// Packet is a contiguous byte buffer with a typed header view.
// Invariant: header.length == len(payload) at all times (spec.md §3).
type Packet struct {
	kind Kind
	buf  []byte // header + payload, contiguous
	hlen int    // header length in bytes for this kind
}

// header lengths per kind (spec.md §3).
const (
	commandHeaderLen = 3 // 2-byte opcode + 1-byte length
	eventHeaderLen   = 2 // 1-byte code + 1-byte length
	aclHeaderLen     = 4 // 16-bit handle_and_flags + 16-bit length
)

// NewCommandPacket allocates an outbound command packet for op with a
// payload of payloadSize bytes, with the header already written.
func NewCommandPacket(op hcidefs.OpCode, payloadSize int) *Packet {
	p := &Packet{kind: KindCommand, hlen: commandHeaderLen}
	p.buf = acquire(commandHeaderLen + payloadSize)
	LE.PutUint16(p.buf[0:2], uint16(op))
	p.buf[2] = uint8(payloadSize)
	return p
}

// NewACLDataPacket allocates an outbound ACL packet addressed to
// handle, with the given packet-boundary and broadcast flags and a
// payload of payloadSize bytes.
func NewACLDataPacket(handle uint16, pb PBFlag, bc BCFlag, payloadSize int) *Packet {
	p := &Packet{kind: KindACLData, hlen: aclHeaderLen}
	p.buf = acquire(aclHeaderLen + payloadSize)
	p.writeACLHeader(handle, pb, bc, uint16(payloadSize))
	return p
}

// NewEventPacket parses an inbound event from raw bytes: one event
// code byte, one length byte, then parameters. Returns
// herr.ErrPacketMalformed if the declared length does not match what
// is actually present.
func NewEventPacket(raw []byte) (*Packet, error) {
	if len(raw) < eventHeaderLen {
		return nil, herr.ErrPacketMalformed
	}
	plen := int(raw[1])
	if len(raw) != eventHeaderLen+plen {
		return nil, herr.ErrPacketMalformed
	}
	p := &Packet{kind: KindEvent, hlen: eventHeaderLen}
	p.buf = acquire(len(raw))
	copy(p.buf, raw)
	return p, nil
}

// NewACLDataPacketFromWire parses an inbound ACL frame: handle_and_flags,
// then a 16-bit length, then payload. Rejects with
// herr.ErrPacketMalformed if the declared length exceeds what is
// actually present (spec.md §4.1 inbound invariant).
func NewACLDataPacketFromWire(raw []byte) (*Packet, error) {
	if len(raw) < aclHeaderLen {
		return nil, herr.ErrPacketMalformed
	}
	dlen := int(LE.Uint16(raw[2:4]))
	if len(raw) < aclHeaderLen+dlen {
		return nil, herr.ErrPacketMalformed
	}
	p := &Packet{kind: KindACLData, hlen: aclHeaderLen}
	p.buf = acquire(aclHeaderLen + dlen)
	copy(p.buf, raw[:aclHeaderLen+dlen])
	return p, nil
}

// Kind reports which of the four packet shapes this is.
func (p *Packet) Kind() Kind { return p.kind }

// View returns the full header+payload buffer.
func (p *Packet) View() []byte { return p.buf }

// Payload returns the parameter/data bytes following the header.
func (p *Packet) Payload() []byte { return p.buf[p.hlen:] }

// MutablePayload returns a writable view over the payload bytes.
func (p *Packet) MutablePayload() []byte { return p.buf[p.hlen:] }

// Release returns the packet's backing buffer to its size-class pool.
// The packet must not be used after Release.
func (p *Packet) Release() {
	release(p.buf)
	p.buf = nil
}

// OpCode returns the opcode of a command packet.
func (p *Packet) OpCode() hcidefs.OpCode {
	return hcidefs.OpCode(LE.Uint16(p.buf[0:2]))
}

// EventCode returns the event code of an event packet.
func (p *Packet) EventCode() hcidefs.EventCode {
	return hcidefs.EventCode(p.buf[0])
}
