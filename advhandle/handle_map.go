// Package advhandle implements AdvertisingHandleMap (spec.md §4.7,
// §8 scenarios #1-2): a bounded bijection between addresses and
// extended-advertising set handles, with recycling.
package advhandle

import "github.com/braidwire/hcicore/address"

// DefaultCapacity matches the controller-reported maximum of 255
// concurrent advertising sets when no narrower limit is supplied.
const DefaultCapacity = 255

// HandleMap maintains a capacity-bounded bijection between addresses
// and advertising-set handles.
type HandleMap struct {
	capacity int
	addrToH  map[address.DeviceAddress]uint8
	hToAddr  map[uint8]address.DeviceAddress
	lastUsed int
}

// New constructs a HandleMap bounded by capacity, which must be in
// [1, 255].
func New(capacity int) *HandleMap {
	if capacity <= 0 || capacity > 255 {
		capacity = DefaultCapacity
	}
	return &HandleMap{
		capacity: capacity,
		addrToH:  make(map[address.DeviceAddress]uint8),
		hToAddr:  make(map[uint8]address.DeviceAddress),
		lastUsed: -1,
	}
}

// MapHandle returns the handle for addr, allocating one if addr is
// new. It is idempotent for a given addr until that address or its
// handle is removed, or Clear is called. Returns ok=false if the map
// is at capacity and addr is new.
func (m *HandleMap) MapHandle(addr address.DeviceAddress) (handle uint8, ok bool) {
	if h, found := m.addrToH[addr]; found {
		return h, true
	}
	if len(m.addrToH) >= m.capacity {
		return 0, false
	}
	h, ok := m.nextHandle()
	if !ok {
		return 0, false
	}
	m.addrToH[addr] = h
	m.hToAddr[h] = addr
	m.lastUsed = int(h)
	return h, true
}

// nextHandle scans forward from lastUsed+1, wrapping, for the first
// free slot — O(capacity), matching the source's scan-from-last policy.
func (m *HandleMap) nextHandle() (uint8, bool) {
	for i := 0; i < m.capacity; i++ {
		candidate := uint8((m.lastUsed + 1 + i) % m.capacity)
		if _, used := m.hToAddr[candidate]; !used {
			return candidate, true
		}
	}
	return 0, false
}

// PeekNextHandle reports which handle the next MapHandle call for a
// new address would assign, without allocating it.
func (m *HandleMap) PeekNextHandle() (uint8, bool) {
	if len(m.hToAddr) >= m.capacity {
		return 0, false
	}
	return m.nextHandle()
}

// GetHandle returns the handle currently mapped to addr.
func (m *HandleMap) GetHandle(addr address.DeviceAddress) (uint8, bool) {
	h, ok := m.addrToH[addr]
	return h, ok
}

// GetAddress returns the address currently mapped to handle.
func (m *HandleMap) GetAddress(handle uint8) (address.DeviceAddress, bool) {
	a, ok := m.hToAddr[handle]
	return a, ok
}

// RemoveHandle frees handle and its paired address, if any.
func (m *HandleMap) RemoveHandle(handle uint8) {
	addr, ok := m.hToAddr[handle]
	if !ok {
		return
	}
	delete(m.hToAddr, handle)
	delete(m.addrToH, addr)
}

// RemoveAddress frees addr and its paired handle, if any.
func (m *HandleMap) RemoveAddress(addr address.DeviceAddress) {
	h, ok := m.addrToH[addr]
	if !ok {
		return
	}
	delete(m.addrToH, addr)
	delete(m.hToAddr, h)
}

// Size reports the number of currently mapped pairs.
func (m *HandleMap) Size() int { return len(m.addrToH) }

// Empty reports whether the map holds no pairs.
func (m *HandleMap) Empty() bool { return len(m.addrToH) == 0 }

// Clear removes every mapping.
func (m *HandleMap) Clear() {
	m.addrToH = make(map[address.DeviceAddress]uint8)
	m.hToAddr = make(map[uint8]address.DeviceAddress)
	m.lastUsed = -1
}
