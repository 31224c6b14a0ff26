package acldata

import (
	"github.com/braidwire/hcicore/packet"
)

// link tracks one registered connection handle's outbound queue,
// inbound reassembly state, and outstanding-credit count.
type link struct {
	handle     uint16
	linkType   LinkType
	rx         ConnectionCallback
	outstanding int

	outbound []*packet.Packet

	reassembling bool
	reassembly   []byte
	wantLen      int
}

func newLink(handle uint16, lt LinkType, rx ConnectionCallback) *link {
	return &link{handle: handle, linkType: lt, rx: rx}
}

func (l *link) enqueue(pkt *packet.Packet) {
	l.outbound = append(l.outbound, pkt)
}

func (l *link) dequeue() *packet.Packet {
	if len(l.outbound) == 0 {
		return nil
	}
	pkt := l.outbound[0]
	l.outbound = l.outbound[1:]
	return pkt
}

// feed processes one inbound ACL fragment addressed to this link,
// applying the PB-flag reassembly policy of spec.md §4.4. It returns a
// complete PDU with delivered=true when one becomes available, and
// oversize=true when the reassembly grew too large and the link must
// be closed.
func (l *link) feed(pkt *packet.Packet) (pdu []byte, delivered bool, oversize bool) {
	payload := pkt.Payload()
	switch pkt.PacketBoundaryFlag() {
	case packet.PBFirstNonFlush, packet.PBFirstFlush:
		if len(payload) < 2 {
			return nil, false, false
		}
		want := int(packet.LE.Uint16(payload[0:2]))
		l.reassembling = true
		l.wantLen = want
		l.reassembly = append([]byte(nil), payload...)
		if len(l.reassembly)-2 > kMaxACLMaxTxPDU || want > kMaxACLMaxTxPDU {
			l.reassembling = false
			l.reassembly = nil
			return nil, false, true
		}
		if len(l.reassembly)-2 >= want {
			pdu := l.reassembly[2 : 2+want]
			l.reassembling = false
			l.reassembly = nil
			return pdu, true, false
		}
		return nil, false, false

	case packet.PBContinuing:
		if !l.reassembling {
			return nil, false, false // caller counts reassembly_error
		}
		l.reassembly = append(l.reassembly, payload...)
		if len(l.reassembly)-2 > kMaxACLMaxTxPDU {
			l.reassembling = false
			l.reassembly = nil
			return nil, false, true
		}
		if len(l.reassembly)-2 >= l.wantLen {
			pdu := l.reassembly[2 : 2+l.wantLen]
			l.reassembling = false
			l.reassembly = nil
			return pdu, true, false
		}
		return nil, false, false

	case packet.PBComplete:
		return payload, true, false
	}
	return nil, false, false
}
