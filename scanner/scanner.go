// Package scanner implements the LE Scanner state machine of spec.md
// §4.8: Idle → Initiating → {Passive, Active} → Stopping → Idle,
// transitions serialized by a SequentialCommandRunner, with scan
// response reassembly via PendingScanResult.
package scanner

import (
	"time"

	"github.com/braidwire/hcicore/address"
	"github.com/braidwire/hcicore/advreport"
	"github.com/braidwire/hcicore/cmdchannel"
	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
	"github.com/braidwire/hcicore/packet"
	"github.com/braidwire/hcicore/seqrunner"
)

// kMaxLEAdvertisingDataLength mirrors advertiser's legacy length bound
// (spec.md §4.7/§9). A pendingResult keeps the advertising data and the
// scan response as two separate slices; their size is not checked
// against this bound.
const kMaxLEAdvertisingDataLength = 31

// State is the scanner's current phase.
type State int

const (
	Idle State = iota
	Initiating
	Passive
	Active
	Stopping
)

// Params configures one scan session (spec.md §4.8).
type Params struct {
	ActiveScan         bool
	Interval           uint16
	Window             uint16
	FilterDuplicates    bool
	FilterPolicy        uint8
	Period              time.Duration
	ScanResponseTimeout time.Duration
}

// DefaultScanResponseTimeout is used when Params.ScanResponseTimeout
// is zero (spec.md §5).
const DefaultScanResponseTimeout = 2 * time.Second

// Result is a discovered peer, combining the initial report with any
// matched scan response.
type Result struct {
	Address  address.DeviceAddress
	RSSI     int8
	Data     []byte
	ScanRsp  []byte
}

// PeerFoundCallback reports one fully-resolved advertisement.
type PeerFoundCallback func(Result)

// pendingResult accumulates a scannable advertisement awaiting its
// scan response (spec.md §4.8 glossary).
type pendingResult struct {
	result Result
	timer  *time.Timer
}

// Scanner drives the LE scan state machine.
type Scanner struct {
	cmds   *cmdchannel.CommandChannel
	runner *seqrunner.Runner

	state  State
	params Params

	pending       map[address.DeviceAddress]*pendingResult
	onPeerFound   PeerFoundCallback
	onDirected    PeerFoundCallback
	periodTimer   *time.Timer
	scanCompleteCb func(herr.Status)
}

// New constructs a Scanner driving commands over cmds.
func New(cmds *cmdchannel.CommandChannel) *Scanner {
	s := &Scanner{
		cmds:    cmds,
		runner:  seqrunner.New(cmds),
		state:   Idle,
		pending: make(map[address.DeviceAddress]*pendingResult),
	}
	cmds.RegisterLEEventHandler(hcidefs.LEAdvertisingReport, s.handleAdvertisingReport)
	return s
}

// OnPeerFound registers the callback for resolved advertisements.
func (s *Scanner) OnPeerFound(cb PeerFoundCallback) { s.onPeerFound = cb }

// OnDirectedAdvertisement registers the callback for directed reports.
func (s *Scanner) OnDirectedAdvertisement(cb PeerFoundCallback) { s.onDirected = cb }

// StartScan transitions Idle → Initiating → {Passive, Active}.
func (s *Scanner) StartScan(p Params, completeCb func(herr.Status)) {
	if s.state != Idle {
		completeCb(0x0C) // Command Disallowed
		return
	}
	if p.ScanResponseTimeout == 0 {
		p.ScanResponseTimeout = DefaultScanResponseTimeout
	}
	s.params = p
	s.state = Initiating
	s.scanCompleteCb = completeCb

	steps := []seqrunner.Step{
		{Packet: buildScanParamsCommand(p), ExpectedEvent: hcidefs.EventCommandComplete},
		{Packet: buildScanEnableCommand(true, p.FilterDuplicates), ExpectedEvent: hcidefs.EventCommandComplete},
	}
	s.runner.Run(steps, func(status herr.Status, err error) {
		if err != nil {
			s.state = Idle
			if completeCb != nil {
				completeCb(status)
			}
			return
		}
		if p.ActiveScan {
			s.state = Active
		} else {
			s.state = Passive
		}
		if p.Period > 0 {
			s.periodTimer = time.AfterFunc(p.Period, s.onPeriodExpired)
		}
		if completeCb != nil {
			completeCb(herr.StatusSuccess)
		}
	})
}

func (s *Scanner) onPeriodExpired() {
	s.StopScan(s.scanCompleteCb)
}

// StopScan is idempotent; it transitions to Stopping then Idle,
// firing the same completion path as a natural period timeout.
func (s *Scanner) StopScan(completeCb func(herr.Status)) {
	if s.state == Idle || s.state == Stopping {
		if completeCb != nil {
			completeCb(herr.StatusSuccess)
		}
		return
	}
	s.state = Stopping
	if s.periodTimer != nil {
		s.periodTimer.Stop()
	}
	s.runner.Run([]seqrunner.Step{
		{Packet: buildScanEnableCommand(false, false), ExpectedEvent: hcidefs.EventCommandComplete},
	}, func(status herr.Status, err error) {
		s.state = Idle
		s.flushPending()
		if completeCb != nil {
			completeCb(status)
		}
	})
}

func (s *Scanner) flushPending() {
	for addr, pr := range s.pending {
		pr.timer.Stop()
		delete(s.pending, addr)
	}
}

func buildScanParamsCommand(p Params) *packet.Packet {
	pkt := packet.NewCommandPacket(hcidefs.OpLESetScanParameters, 7)
	body := pkt.MutablePayload()
	if p.ActiveScan {
		body[0] = 0x01
	}
	packet.LE.PutUint16(body[1:3], p.Interval)
	packet.LE.PutUint16(body[3:5], p.Window)
	body[6] = p.FilterPolicy
	return pkt
}

func buildScanEnableCommand(enable, filterDuplicates bool) *packet.Packet {
	pkt := packet.NewCommandPacket(hcidefs.OpLESetScanEnable, 2)
	body := pkt.MutablePayload()
	if enable {
		body[0] = 1
	}
	if filterDuplicates {
		body[1] = 1
	}
	return pkt
}

// eventType bits per the Bluetooth LE Advertising Report: bit0
// connectable, bit1 scannable, bit2 directed, bit3 scan response.
const (
	evtConnectable = 1 << 0
	evtScannable   = 1 << 1
	evtDirected    = 1 << 2
	evtScanRsp     = 1 << 3
)

func (s *Scanner) handleAdvertisingReport(params []byte) cmdchannel.EventAction {
	parser := advreport.New(params)
	for parser.HasMoreReports() {
		report, ok := parser.GetNextReport()
		if !ok {
			break
		}
		s.handleReport(report)
	}
	return cmdchannel.Continue
}

func (s *Scanner) handleReport(r advreport.Report) {
	addr := address.DeviceAddress{Type: address.LEAddressTypeFromWire(r.AddressType), Bytes: r.Address}

	if r.EventType&evtScanRsp != 0 {
		pr, ok := s.pending[addr]
		if !ok {
			return
		}
		pr.timer.Stop()
		delete(s.pending, addr)
		pr.result.ScanRsp = r.Data
		if s.onPeerFound != nil {
			s.onPeerFound(pr.result)
		}
		return
	}

	result := Result{Address: addr, RSSI: r.RSSI, Data: r.Data}

	if r.EventType&evtScannable != 0 && s.params.ActiveScan {
		timeout := s.params.ScanResponseTimeout
		if timeout == 0 {
			timeout = DefaultScanResponseTimeout
		}
		pr := &pendingResult{result: result}
		pr.timer = time.AfterFunc(timeout, func() {
			delete(s.pending, addr)
			if s.onPeerFound != nil {
				s.onPeerFound(pr.result)
			}
		})
		s.pending[addr] = pr
		return
	}

	if r.EventType&evtDirected != 0 {
		if s.onDirected != nil {
			s.onDirected(result)
		}
		return
	}

	if s.onPeerFound != nil {
		s.onPeerFound(result)
	}
}
