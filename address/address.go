// Package address implements DeviceAddress and the local-identity
// delegate used by the advertiser and scanner (spec.md §4.7, §4.8).
package address

import "fmt"

// Type distinguishes the address kinds spec.md §3's Connection data
// model requires: a classic BR/EDR address, an LE public or random
// address, or LE anonymous (no address at all, per
// advertiser.Options.Anonymous).
type Type uint8

const (
	BREDR Type = iota
	LEPublic
	LERandom
	LEAnonymous
)

// LEAddressTypeFromWire maps the controller's wire-level LE address
// type byte (0x00 public, 0x01 random) to Type.
func LEAddressTypeFromWire(wire uint8) Type {
	if wire == 0x01 {
		return LERandom
	}
	return LEPublic
}

// DeviceAddress is a 48-bit Bluetooth device address plus its type;
// equality is over both fields (spec.md glossary).
type DeviceAddress struct {
	Type  Type
	Bytes [6]byte
}

// Equal reports whether a and b have the same type and bytes.
func (a DeviceAddress) Equal(b DeviceAddress) bool {
	return a.Type == b.Type && a.Bytes == b.Bytes
}

func (a DeviceAddress) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		a.Bytes[0], a.Bytes[1], a.Bytes[2], a.Bytes[3], a.Bytes[4], a.Bytes[5])
}

// LocalAddressDelegate supplies the local address the advertiser or
// scanner should use. It is async because the identity address may
// depend on an in-progress RPA rotation (spec.md §4.7).
type LocalAddressDelegate interface {
	LocalAddress(cb func(DeviceAddress, error))
}
