package packet

import "encoding/binary"

// order extends binary.ByteOrder with the odd-sized reads this wire
// format needs: single bytes, signed bytes, and 48-bit MAC addresses
// carried octet-reversed on the air.
type order struct{ binary.ByteOrder }

// LE is the little-endian byte order mandated by spec.md §3 for every
// multi-byte field on the wire.
var LE = order{binary.LittleEndian}

func (order) Uint8(b []byte) uint8    { return b[0] }
func (order) PutUint8(b []byte, v uint8) { b[0] = v }
func (order) Int8(b []byte) int8      { return int8(b[0]) }

func (order) MAC(b []byte) [6]byte {
	var m [6]byte
	m[0], m[1], m[2], m[3], m[4], m[5] = b[5], b[4], b[3], b[2], b[1], b[0]
	return m
}

func (order) PutMAC(b []byte, m [6]byte) {
	b[0], b[1], b[2], b[3], b[4], b[5] = m[5], m[4], m[3], m[2], m[1], m[0]
}
