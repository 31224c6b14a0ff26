package cmdchannel

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/packet"
)

// pipe is a minimal in-memory io.ReadWriter the test drives directly:
// writes from the channel land in `out`, and fakeEvent feeds bytes
// back in through a blocking channel so the read loop can consume them
// at its own pace.
type pipe struct {
	mu  sync.Mutex
	out bytes.Buffer

	in chan []byte
}

func newPipe() *pipe {
	return &pipe{in: make(chan []byte, 16)}
}

func (p *pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out.Write(b)
	return len(b), nil
}

func (p *pipe) Read(b []byte) (int, error) {
	chunk, ok := <-p.in
	if !ok {
		return 0, io.EOF
	}
	n := copy(b, chunk)
	if n < len(chunk) {
		p.in <- chunk[n:]
	}
	return n, nil
}

func (p *pipe) feed(b []byte) { p.in <- b }

func (p *pipe) lastWrite() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, p.out.Len())
	copy(out, p.out.Bytes())
	return out
}

func commandStatus(status byte, numPackets byte, op hcidefs.OpCode) []byte {
	buf := make([]byte, 2+4)
	buf[0] = byte(hcidefs.EventCommandStatus)
	buf[1] = 4
	buf[2] = status
	buf[3] = numPackets
	packet.LE.PutUint16(buf[4:6], uint16(op))
	return buf
}

func commandComplete(numPackets byte, op hcidefs.OpCode, status byte) []byte {
	buf := make([]byte, 2+4)
	buf[0] = byte(hcidefs.EventCommandComplete)
	buf[1] = 4
	buf[2] = numPackets
	packet.LE.PutUint16(buf[3:5], uint16(op))
	buf[5] = status
	return buf
}

// TestCreditGatingPipelinesSecondCommandAfterFirstStatus reproduces
// spec.md §8 scenario #4: with Num_HCI_Command_Packets granted as 1,
// a second queued command must not be written to the controller until
// the first's CommandStatus has been received.
func TestCreditGatingPipelinesSecondCommandAfterFirstStatus(t *testing.T) {
	p := newPipe()
	c := New(p, nil, func(error) {})
	defer c.Close()

	doneA := make(chan Result, 1)
	doneB := make(chan Result, 1)

	pktA := packet.NewCommandPacket(hcidefs.OpReset, 0)
	pktB := packet.NewCommandPacket(hcidefs.OpReadRemoteVersion, 0)

	if _, err := c.Send(pktA, hcidefs.EventCommandComplete, func(r Result) { doneA <- r }); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Send(pktB, hcidefs.EventCommandComplete, func(r Result) { doneB <- r }); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	if got := p.lastWrite(); len(got) != len(pktA.View()) {
		t.Fatalf("expected only command A written before status, got %d bytes", len(got))
	}

	p.feed(commandStatus(0x00, 1, hcidefs.OpReset))

	select {
	case <-doneA:
		t.Fatal("CommandStatus alone must not finalize a CommandComplete-awaiting transaction")
	case <-time.After(20 * time.Millisecond):
	}

	time.Sleep(20 * time.Millisecond)
	if got := p.lastWrite(); len(got) != len(pktA.View())+len(pktB.View()) {
		t.Fatalf("expected command B written after A's status freed credit, got %d bytes", len(got))
	}

	p.feed(commandComplete(1, hcidefs.OpReset, 0x00))
	select {
	case r := <-doneA:
		if r.Err != nil || !r.Status.Ok() {
			t.Fatalf("unexpected result for A: %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for A's completion")
	}

	p.feed(commandComplete(1, hcidefs.OpReadRemoteVersion, 0x00))
	select {
	case r := <-doneB:
		if r.Err != nil || !r.Status.Ok() {
			t.Fatalf("unexpected result for B: %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for B's completion")
	}
}

// TestCommandCompleteWithoutPriorStatusFinalizesDirectly covers the
// common case of a command whose only reply is CommandComplete.
func TestCommandCompleteWithoutPriorStatusFinalizesDirectly(t *testing.T) {
	p := newPipe()
	c := New(p, nil, func(error) {})
	defer c.Close()

	done := make(chan Result, 1)
	pkt := packet.NewCommandPacket(hcidefs.OpReset, 0)
	if _, err := c.Send(pkt, hcidefs.EventCommandComplete, func(r Result) { done <- r }); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	p.feed(commandComplete(1, hcidefs.OpReset, 0x0C))

	select {
	case r := <-done:
		if r.Status != 0x0C {
			t.Errorf("status = %#x, want 0x0C", uint8(r.Status))
		}
		if r.Err == nil {
			t.Error("expected non-success status to surface an error")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completion")
	}
}

// TestRegisteredEventHandlerReceivedUnrelatedEvents verifies events
// with no awaiting transaction still reach registered handlers.
func TestRegisteredEventHandlerReceivedUnrelatedEvents(t *testing.T) {
	p := newPipe()
	c := New(p, nil, func(error) {})
	defer c.Close()

	seen := make(chan []byte, 1)
	c.RegisterEventHandler(hcidefs.EventDisconnectionComplete, func(params []byte) EventAction {
		seen <- params
		return RemoveMe
	})

	raw := []byte{byte(hcidefs.EventDisconnectionComplete), 0x03, 0x00, 0x01, 0x00}
	p.feed(raw)

	select {
	case got := <-seen:
		if len(got) != 3 {
			t.Errorf("params len = %d, want 3", len(got))
		}
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}

	// RemoveMe must deregister; the handler list should now be empty.
	time.Sleep(10 * time.Millisecond)
	c.mu.Lock()
	n := len(c.eventHandlers[hcidefs.EventDisconnectionComplete])
	c.mu.Unlock()
	if n != 0 {
		t.Errorf("handler list len = %d, want 0 after RemoveMe", n)
	}
}
