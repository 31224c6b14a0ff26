// Package herr defines the error taxonomy shared by every component of
// the HCI core: the command/event engine, the ACL data engine, the
// connection family, and the LE advertiser/scanner.
package herr

import "errors"

// Sentinel errors. Callers compare with errors.Is; component-specific
// detail is added with fmt.Errorf("...: %w", sentinel).
var (
	// ErrProtocol wraps a non-zero controller status returned in
	// Command Status, Command Complete, or a completion event.
	ErrProtocol = errors.New("protocol error")

	// ErrPacketMalformed indicates an event or ACL packet failed
	// framing validation.
	ErrPacketMalformed = errors.New("packet malformed")

	// ErrInvalidParameters indicates caller misuse: zero opcode,
	// oversized ACL payload, unknown handle.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrNotReady indicates ACLDataChannel was used before init.
	ErrNotReady = errors.New("not ready")

	// ErrTimeout indicates the command watchdog fired.
	ErrTimeout = errors.New("timeout")

	// ErrCanceled indicates the caller or a runner aborted the operation.
	ErrCanceled = errors.New("canceled")

	// ErrInsufficientSecurity indicates a BR/EDR key size below the
	// minimum required for encryption.
	ErrInsufficientSecurity = errors.New("insufficient security")

	// ErrIOError indicates the underlying channel closed or faulted.
	ErrIOError = errors.New("io error")
)

// Status is a controller status code as carried in Command Complete,
// Command Status, or a completion event's first status byte. Zero is
// success; every other value is ProtocolError(status).
type Status uint8

// StatusSuccess is the zero status: no error.
const StatusSuccess Status = 0x00

// Ok reports whether the status indicates success.
func (s Status) Ok() bool { return s == StatusSuccess }

// Err returns nil for StatusSuccess, else an error wrapping ErrProtocol
// that carries the raw status code in its message.
func (s Status) Err() error {
	if s.Ok() {
		return nil
	}
	return &ProtocolStatusError{Status: s}
}

// ProtocolStatusError is ErrProtocol annotated with the raw controller
// status code that produced it.
type ProtocolStatusError struct {
	Status Status
}

func (e *ProtocolStatusError) Error() string {
	return "hci: controller status 0x" + hexByte(uint8(e.Status))
}

func (e *ProtocolStatusError) Unwrap() error { return ErrProtocol }

func hexByte(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}
