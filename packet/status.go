package packet

import (
	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
)

// ToStatus decodes the controller status carried by an event packet,
// per spec.md §4.1:
//   - for well-known event codes, the first parameter byte;
//   - for LE Meta, the first byte of the subevent parameters;
//   - for Command Complete, the first byte of the return parameters.
//
// Unknown event codes are a protocol error, not a host-aborting fault.
func (p *Packet) ToStatus() (herr.Status, error) {
	if p.kind != KindEvent {
		return 0, herr.ErrInvalidParameters
	}
	params := p.Payload()
	code := p.EventCode()

	switch code {
	case hcidefs.EventCommandComplete:
		// numHCICommandPackets(1) + opcode(2) + return params...
		if len(params) < 4 {
			return 0, herr.ErrPacketMalformed
		}
		return herr.Status(params[3]), nil
	case hcidefs.EventLEMeta:
		if len(params) < 2 {
			return 0, herr.ErrPacketMalformed
		}
		// subevent code (1) + subevent params, status is first when present
		return herr.Status(params[1]), nil
	default:
		if !hcidefs.KnownEvent(code) {
			return 0, herr.ErrProtocol
		}
		if len(params) < 1 {
			return 0, herr.ErrPacketMalformed
		}
		return herr.Status(params[0]), nil
	}
}
