package packet

import (
	"testing"

	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
)

func TestACLDataPacketRoundTrip(t *testing.T) {
	cases := []struct {
		handle uint16
		pb     PBFlag
		bc     BCFlag
	}{
		{handle: 1, pb: PBFirstNonFlush, bc: BCPointToPoint},
		{handle: 0x0FFF, pb: PBContinuing, bc: BCActiveSlaveBroadcast},
		{handle: 42, pb: PBFirstFlush, bc: BCPointToPoint},
		{handle: 7, pb: PBComplete, bc: BCPicoNetBroadcast},
	}
	for _, tt := range cases {
		p := NewACLDataPacket(tt.handle, tt.pb, tt.bc, 4)
		if got := p.ConnectionHandle(); got != tt.handle {
			t.Errorf("ConnectionHandle() = %d, want %d", got, tt.handle)
		}
		if got := p.PacketBoundaryFlag(); got != tt.pb {
			t.Errorf("PacketBoundaryFlag() = %d, want %d", got, tt.pb)
		}
		if got := p.BroadcastFlag(); got != tt.bc {
			t.Errorf("BroadcastFlag() = %d, want %d", got, tt.bc)
		}
		p.Release()
	}
}

func TestACLDataPacketFromWireRejectsOverrunLength(t *testing.T) {
	raw := []byte{0x01, 0x00, 0xFF, 0x00} // declares 255 bytes of payload, has none
	if _, err := NewACLDataPacketFromWire(raw); err != herr.ErrPacketMalformed {
		t.Fatalf("got err %v, want ErrPacketMalformed", err)
	}
}

func TestEventPacketRejectsWrongLength(t *testing.T) {
	raw := []byte{byte(hcidefs.EventDisconnectionComplete), 0x05, 0x00} // declares 5, has 1
	if _, err := NewEventPacket(raw); err != herr.ErrPacketMalformed {
		t.Fatalf("got err %v, want ErrPacketMalformed", err)
	}
}

func TestToStatusCommandComplete(t *testing.T) {
	raw := []byte{byte(hcidefs.EventCommandComplete), 0x04, 0x01, 0x00, 0x00, 0x07}
	p, err := NewEventPacket(raw)
	if err != nil {
		t.Fatal(err)
	}
	status, err := p.ToStatus()
	if err != nil {
		t.Fatal(err)
	}
	if status != herr.Status(0x07) {
		t.Errorf("status = %#x, want 0x07", uint8(status))
	}
}

func TestToStatusWellKnownEvent(t *testing.T) {
	raw := []byte{byte(hcidefs.EventDisconnectionComplete), 0x04, 0x0E, 0x01, 0x00, 0x13}
	p, err := NewEventPacket(raw)
	if err != nil {
		t.Fatal(err)
	}
	status, err := p.ToStatus()
	if err != nil {
		t.Fatal(err)
	}
	if status != herr.Status(0x0E) {
		t.Errorf("status = %#x, want 0x0E", uint8(status))
	}
}

func TestToStatusUnknownEventIsProtocolError(t *testing.T) {
	raw := []byte{0x7F, 0x01, 0x00}
	p, err := NewEventPacket(raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.ToStatus(); err != herr.ErrProtocol {
		t.Fatalf("got %v, want ErrProtocol", err)
	}
}

func TestNewCommandPacketWritesHeader(t *testing.T) {
	p := NewCommandPacket(hcidefs.OpReset, 0)
	if p.OpCode() != hcidefs.OpReset {
		t.Errorf("OpCode() = %v, want OpReset", p.OpCode())
	}
	if len(p.Payload()) != 0 {
		t.Errorf("Payload() len = %d, want 0", len(p.Payload()))
	}
	if p.View()[2] != 0 {
		t.Errorf("header length byte = %d, want 0", p.View()[2])
	}
}
