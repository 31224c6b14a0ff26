// Package advreport implements AdvertisingReportParser (spec.md
// §4.10): a pull-style, bounds-checked iterator over the reports
// packed into one LE Advertising Report subevent payload.
package advreport

import "github.com/braidwire/hcicore/packet"

// reportHeaderLen is the fixed portion of one report entry: event
// type (1) + address type (1) + address (6) + data length (1).
const reportHeaderLen = 9

// Report is one decoded LE advertising report.
type Report struct {
	EventType   uint8
	AddressType uint8
	Address     [6]byte
	Data        []byte
	RSSI        int8
}

// Parser pulls reports one at a time out of the subevent payload that
// follows an LE-Meta event's subevent-code byte.
type Parser struct {
	buf             []byte
	cursor          int
	remainingReports int
	encounteredError bool
}

// New constructs a Parser over the LE Advertising Report subevent
// payload (i.e. params[1:] of an LE-Meta event, after the subevent
// code byte). payload[0] is num_reports.
func New(payload []byte) *Parser {
	if len(payload) < 1 {
		return &Parser{encounteredError: true}
	}
	return &Parser{buf: payload[1:], remainingReports: int(payload[0])}
}

// HasMoreReports reports whether GetNextReport can still succeed. It
// also guards the invariant remaining_reports==0 ⇔ remaining_bytes==0
// (spec.md §4.10): a violation latches the error flag.
func (p *Parser) HasMoreReports() bool {
	if p.encounteredError {
		return false
	}
	remainingBytes := len(p.buf) - p.cursor
	if (p.remainingReports == 0) != (remainingBytes == 0) {
		p.encounteredError = true
		return false
	}
	return p.remainingReports > 0
}

// GetNextReport decodes one report, advancing the cursor. Returns
// false and latches encounteredError permanently on any bounds
// violation or when no reports remain.
func (p *Parser) GetNextReport() (Report, bool) {
	if p.encounteredError || p.remainingReports == 0 {
		p.encounteredError = true
		return Report{}, false
	}
	remaining := p.buf[p.cursor:]
	if len(remaining) < reportHeaderLen {
		p.encounteredError = true
		return Report{}, false
	}
	dataLen := int(remaining[8])
	reportSize := reportHeaderLen + dataLen + 1 // +1 for trailing RSSI byte
	if reportSize > len(remaining) {
		p.encounteredError = true
		return Report{}, false
	}

	var r Report
	r.EventType = remaining[0]
	r.AddressType = remaining[1]
	r.Address = packet.LE.MAC(remaining[2:8])
	r.Data = append([]byte(nil), remaining[9:9+dataLen]...)
	r.RSSI = packet.LE.Int8(remaining[9+dataLen : 9+dataLen+1])

	p.cursor += reportSize
	p.remainingReports--
	return r, true
}

// EncounteredError reports whether a bounds violation has been seen.
func (p *Parser) EncounteredError() bool { return p.encounteredError }
