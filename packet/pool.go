package packet

import "sync"

// Size classes for pooled packet buffers. These are a performance
// tactic only — not part of the observable contract (spec.md §9) — so
// callers never see which class backed an allocation.
const (
	smallClassSize  = 64   // command params, most events
	mediumClassSize = 512  // BR/EDR ACL fragments
	largeClassSize  = 1024 // LE data-length-extension ACL fragments
)

var (
	smallPool = sync.Pool{New: func() interface{} { return make([]byte, smallClassSize) }}
	medPool   = sync.Pool{New: func() interface{} { return make([]byte, mediumClassSize) }}
	largePool = sync.Pool{New: func() interface{} { return make([]byte, largeClassSize) }}
)

// acquire returns a buffer of at least n bytes from the matching size
// class pool, or a plain allocation if n exceeds the largest class.
func acquire(n int) []byte {
	switch {
	case n <= smallClassSize:
		b := smallPool.Get().([]byte)
		return b[:n]
	case n <= mediumClassSize:
		b := medPool.Get().([]byte)
		return b[:n]
	case n <= largeClassSize:
		b := largePool.Get().([]byte)
		return b[:n]
	default:
		return make([]byte, n)
	}
}

// release returns b to its size class pool. Buffers from a plain
// allocation (larger than largeClassSize) are simply dropped.
func release(b []byte) {
	switch cap(b) {
	case smallClassSize:
		smallPool.Put(b[:smallClassSize])
	case mediumClassSize:
		medPool.Put(b[:mediumClassSize])
	case largeClassSize:
		largePool.Put(b[:largeClassSize])
	}
}
