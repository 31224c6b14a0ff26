package advhandle

import (
	"testing"

	"github.com/braidwire/hcicore/address"
)

func addr(n byte) address.DeviceAddress {
	return address.DeviceAddress{Type: address.LEPublic, Bytes: [6]byte{0, 0, 0, 0, 0, n}}
}

// TestBoundedCapacityRejectsOverflow covers spec.md §8 scenario #1.
func TestBoundedCapacityRejectsOverflow(t *testing.T) {
	m := New(2)
	if _, ok := m.MapHandle(addr(0)); !ok {
		t.Fatal("expected first address to map")
	}
	if _, ok := m.MapHandle(addr(1)); !ok {
		t.Fatal("expected second address to map")
	}
	if _, ok := m.MapHandle(addr(2)); ok {
		t.Fatal("expected third address to be rejected at capacity")
	}
	if got := m.Size(); got != 2 {
		t.Errorf("Size() = %d, want 2", got)
	}
}

// TestHandleReuseAfterRemoval covers spec.md §8 scenario #2.
func TestHandleReuseAfterRemoval(t *testing.T) {
	const n = 4
	m := New(n)
	for i := byte(0); i < n; i++ {
		if _, ok := m.MapHandle(addr(i)); !ok {
			t.Fatalf("expected address %d to map", i)
		}
	}
	m.RemoveHandle(0)
	h, ok := m.MapHandle(addr(100))
	if !ok {
		t.Fatal("expected new address to map after removal freed a slot")
	}
	if h != 0 {
		t.Errorf("handle = %d, want 0", h)
	}
}

// TestMapHandleIdempotentForSameAddress covers the invariant named in
// spec.md §8.
func TestMapHandleIdempotentForSameAddress(t *testing.T) {
	m := New(4)
	h1, _ := m.MapHandle(addr(1))
	h2, _ := m.MapHandle(addr(1))
	if h1 != h2 {
		t.Errorf("MapHandle not idempotent: %d != %d", h1, h2)
	}
}

func TestGetAddressRoundTrip(t *testing.T) {
	m := New(4)
	a := addr(9)
	h, _ := m.MapHandle(a)
	got, ok := m.GetAddress(h)
	if !ok || !got.Equal(a) {
		t.Errorf("GetAddress(%d) = %v, want %v", h, got, a)
	}
}
