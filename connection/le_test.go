package connection

import (
	"testing"
	"time"

	"github.com/braidwire/hcicore/address"
	"github.com/braidwire/hcicore/cmdchannel"
	"github.com/braidwire/hcicore/herr"
)

var (
	testLocal = address.DeviceAddress{Type: address.LEPublic, Bytes: [6]byte{1, 1, 1, 1, 1, 1}}
	testPeer  = address.DeviceAddress{Type: address.LEPublic, Bytes: [6]byte{2, 2, 2, 2, 2, 2}}
)

// blockingRW satisfies io.ReadWriter for CommandChannel construction in
// tests that drive encryption events directly rather than over the wire.
type blockingRW struct {
	written chan []byte
	reads   chan []byte
}

func (b *blockingRW) Write(p []byte) (int, error) {
	if b.written != nil {
		cp := append([]byte(nil), p...)
		b.written <- cp
	}
	return len(p), nil
}

func (b *blockingRW) Read(p []byte) (int, error) {
	if b.reads == nil {
		select {}
	}
	chunk := <-b.reads
	n := copy(p, chunk)
	return n, nil
}

// TestStartEncryptionWithoutLTKFailsSynchronously covers spec.md §8
// scenario #5's negative case.
func TestStartEncryptionWithoutLTKFailsSynchronously(t *testing.T) {
	cmds := cmdchannel.New(&blockingRW{}, nil, func(error) {})
	defer cmds.Close()
	conn := NewLowEnergyConnection(1, testLocal, testPeer, Central, cmds)
	if conn.StartEncryption() {
		t.Fatal("StartEncryption must fail synchronously without an LTK")
	}
	if conn.EncryptionState() != EncryptionOff {
		t.Errorf("EncryptionState() = %v, want Off", conn.EncryptionState())
	}
}

// TestStartEncryptionWithLTKReachesOnAfterEncryptionChange covers the
// positive case of spec.md §8 scenario #5.
func TestStartEncryptionWithLTKReachesOnAfterEncryptionChange(t *testing.T) {
	rw := &blockingRW{written: make(chan []byte, 4)}
	cmds := cmdchannel.New(rw, nil, func(error) {})
	defer cmds.Close()

	conn := NewLowEnergyConnection(7, testLocal, testPeer, Central, cmds)
	var ltk [16]byte
	conn.SetLTK(&ltk)

	if !conn.StartEncryption() {
		t.Fatal("StartEncryption should succeed with an LTK present")
	}
	if conn.EncryptionState() != EncryptionPending {
		t.Fatalf("EncryptionState() = %v, want Pending", conn.EncryptionState())
	}

	select {
	case <-rw.written:
	case <-time.After(time.Second):
		t.Fatal("LE Start Encryption command was never written")
	}

	changed := make(chan EncryptionResult, 1)
	conn.OnEncryptionChange(func(r EncryptionResult) { changed <- r })
	conn.HandleEncryptionChange(herr.Status(0x00), true)

	select {
	case r := <-changed:
		if !r.Enabled || r.Err != nil {
			t.Fatalf("unexpected encryption result: %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("encryption-change callback never fired")
	}
	if conn.EncryptionState() != EncryptionOn {
		t.Errorf("EncryptionState() = %v, want On", conn.EncryptionState())
	}
}
