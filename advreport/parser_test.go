package advreport

import "testing"

func buildReport(eventType, addrType byte, addr [6]byte, data []byte, rssi int8) []byte {
	buf := make([]byte, reportHeaderLen+len(data)+1)
	buf[0] = eventType
	buf[1] = addrType
	copy(buf[2:8], []byte{addr[5], addr[4], addr[3], addr[2], addr[1], addr[0]})
	buf[8] = byte(len(data))
	copy(buf[9:], data)
	buf[9+len(data)] = byte(rssi)
	return buf
}

// TestBoundsViolationLatchesError covers spec.md §8 scenario #6: a
// declared second-report length that exceeds the remaining buffer.
func TestBoundsViolationLatchesError(t *testing.T) {
	first := buildReport(0x00, 0x00, [6]byte{1, 2, 3, 4, 5, 6}, make([]byte, 10), -40)

	// Declare a 255-byte payload but only actually provide a handful
	// of bytes, so the second GetNextReport call must fail bounds.
	secondHeader := make([]byte, reportHeaderLen)
	secondHeader[8] = 255
	secondTruncated := append(secondHeader, []byte{0, 1, 2}...)

	payload := append([]byte{2}, first...)
	payload = append(payload, secondTruncated...)

	p := New(payload)
	if !p.HasMoreReports() {
		t.Fatal("expected reports to remain")
	}
	r1, ok := p.GetNextReport()
	if !ok {
		t.Fatal("first report should parse successfully")
	}
	if len(r1.Data) != 10 {
		t.Errorf("first report data len = %d, want 10", len(r1.Data))
	}

	_, ok = p.GetNextReport()
	if ok {
		t.Fatal("second report should fail bounds check")
	}
	if !p.EncounteredError() {
		t.Fatal("expected encounteredError to latch")
	}
	if p.HasMoreReports() {
		t.Fatal("HasMoreReports must return false forever after latching")
	}
	if _, ok := p.GetNextReport(); ok {
		t.Fatal("GetNextReport must keep returning false after latching")
	}
}
