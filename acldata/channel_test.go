package acldata

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/braidwire/hcicore/packet"
)

type fakeConn struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (f *fakeConn) Read(b []byte) (int, error)  { return f.r.Read(b) }
func (f *fakeConn) Write(b []byte) (int, error) { return f.w.Write(b) }

func newFakePair() (host io.ReadWriter, peer io.ReadWriter) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	return &fakeConn{r: r1, w: w2}, &fakeConn{r: r2, w: w1}
}

func aclFrame(handle uint16, pb packet.PBFlag, payload []byte) []byte {
	p := packet.NewACLDataPacket(handle, pb, packet.BCPointToPoint, len(payload))
	copy(p.MutablePayload(), payload)
	return p.View()
}

// TestInboundReassemblyAndDanglingContinuation reproduces spec.md §8
// scenario #3.
func TestInboundReassemblyAndDanglingContinuation(t *testing.T) {
	host, peer := newFakePair()
	c := New(host, DataBufferInfo{MaxDataLength: 27, MaxNumPackets: 4}, DataBufferInfo{}, nil, func(error) {})
	defer c.Close()

	received := make(chan []byte, 1)
	c.RegisterLink(1, LinkBREDR, func(pdu []byte) { received <- pdu })

	// PDU length 6, first fragment carries "ABCD" (4 bytes), second
	// carries the remaining "EF".
	first := make([]byte, 2+4)
	packet.LE.PutUint16(first[0:2], 6)
	copy(first[2:], []byte("ABCD"))
	peer.Write(aclFrame(1, packet.PBFirstNonFlush, first))

	select {
	case <-received:
		t.Fatal("should not deliver before reassembly completes")
	case <-time.After(20 * time.Millisecond):
	}

	peer.Write(aclFrame(1, packet.PBContinuing, []byte("EF")))

	select {
	case pdu := <-received:
		if !bytes.Equal(pdu, []byte("ABCDEF")) {
			t.Fatalf("pdu = %q, want %q", pdu, "ABCDEF")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reassembled pdu")
	}

	// A CONT with no preceding FIRST must be dropped and counted.
	peer.Write(aclFrame(1, packet.PBContinuing, []byte("ZZ")))
	time.Sleep(20 * time.Millisecond)
	if got := c.ReassemblyErrors(); got != 1 {
		t.Errorf("ReassemblyErrors() = %d, want 1", got)
	}
}

// TestUnregisterLinkReturnsCreditAndStopsDispatch covers the
// ACLDataChannel invariant from spec.md §8: after UnregisterLink(h),
// outstanding(h) == 0 and no further delivery occurs for h.
func TestUnregisterLinkReturnsCreditAndStopsDispatch(t *testing.T) {
	host, peer := newFakePair()
	c := New(host, DataBufferInfo{MaxDataLength: 27, MaxNumPackets: 1}, DataBufferInfo{}, nil, func(error) {})
	defer c.Close()
	_ = peer

	received := make(chan []byte, 1)
	c.RegisterLink(5, LinkBREDR, func(pdu []byte) { received <- pdu })

	outPkt := newOutboundPayload(5, []byte{1, 2, 3})
	if err := c.Send(outPkt, LinkBREDR, PriorityNormal); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	if c.brEdrPool.available() {
		t.Fatal("pool should be exhausted while the one credit is outstanding")
	}

	c.UnregisterLink(5)
	if !c.brEdrPool.available() {
		t.Error("credit was not restored to the pool on UnregisterLink")
	}

	// An inbound frame for the unregistered handle must not be delivered.
	peer.Write(aclFrame(5, packet.PBComplete, []byte{9}))
	select {
	case <-received:
		t.Error("frame for an unregistered handle was delivered")
	case <-time.After(20 * time.Millisecond):
	}
}

func newOutboundPayload(handle uint16, payload []byte) *packet.Packet {
	p := packet.NewACLDataPacket(handle, packet.PBComplete, packet.BCPointToPoint, len(payload))
	copy(p.MutablePayload(), payload)
	return p
}
