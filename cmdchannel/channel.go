// Package cmdchannel implements the HCI command/event flow-control
// engine described in spec.md §4.3: a FIFO of pending commands, a
// single in-flight slot plus tables of accepted transactions keyed by
// the event (or LE subevent) code that completes them, event demultiplexing
// to registered handlers, async-command completion matching, and
// Num_HCI_Command_Packets credit accounting.
package cmdchannel

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/braidwire/hcicore/hcidefs"
	"github.com/braidwire/hcicore/herr"
	"github.com/braidwire/hcicore/packet"
)

// DefaultCommandTimeout is the per-command watchdog duration, fatal
// for the transport when it fires (spec.md §5).
const DefaultCommandTimeout = 2 * time.Second

const eventHeaderLen = 2

// CommandChannel serializes outbound commands, matches controller
// replies to the transaction that sent them, and dispatches
// asynchronous events to registered handlers.
type CommandChannel struct {
	log *logrus.Entry
	dev io.ReadWriter

	timeout  time.Duration
	timerNew func(d time.Duration, f func()) *time.Timer

	mu      sync.Mutex
	queue   []*transaction // FIFO, not yet sent
	sending *transaction   // in-flight, awaiting CommandStatus/CommandComplete
	credits int

	awaitingByEvent   map[hcidefs.EventCode]*transaction
	awaitingByLESub   map[hcidefs.LEEventCode]*transaction

	eventHandlers map[hcidefs.EventCode][]EventHandler
	leHandlers    map[hcidefs.LEEventCode][]LEEventHandler

	closedCb  func(error)
	closeOnce sync.Once
	closed    bool
}

// New constructs a CommandChannel reading events from dev and writing
// commands to it. closedCb is invoked at most once, when the read loop
// observes the channel closing or faulting — the transport uses this
// to fire its own transport-closed notification (spec.md §4.2).
func New(dev io.ReadWriter, log *logrus.Entry, closedCb func(error)) *CommandChannel {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &CommandChannel{
		log:             log.WithField("component", "cmdchannel"),
		dev:             dev,
		timeout:         DefaultCommandTimeout,
		credits:         1, // initialized to 1 per spec.md §4.3
		awaitingByEvent: make(map[hcidefs.EventCode]*transaction),
		awaitingByLESub: make(map[hcidefs.LEEventCode]*transaction),
		eventHandlers:   make(map[hcidefs.EventCode][]EventHandler),
		leHandlers:      make(map[hcidefs.LEEventCode][]LEEventHandler),
		closedCb:        closedCb,
	}
	c.timerNew = func(d time.Duration, f func()) *time.Timer { return time.AfterFunc(d, f) }
	go c.readLoop()
	return c
}

// RegisterEventHandler appends h to the handler list for code.
// Handlers within one code run in registration order (spec.md §4.3).
func (c *CommandChannel) RegisterEventHandler(code hcidefs.EventCode, h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHandlers[code] = append(c.eventHandlers[code], h)
}

// RegisterLEEventHandler appends h to the LE subevent handler list.
func (c *CommandChannel) RegisterLEEventHandler(code hcidefs.LEEventCode, h LEEventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leHandlers[code] = append(c.leHandlers[code], h)
}

// Send queues pkt for transmission. completeEvent names the event
// code that finalizes the transaction — either hcidefs.EventCommandStatus
// (the upper layer only wants acceptance, and will separately register
// a handler for the real async result) or another well-known event
// code whose arrival carries this command's outcome.
func (c *CommandChannel) Send(pkt *packet.Packet, completeEvent hcidefs.EventCode, cb Callback) (TransactionID, error) {
	if pkt.Kind() != packet.KindCommand {
		return "", herr.ErrInvalidParameters
	}
	op := pkt.OpCode()
	if op == hcidefs.NOP {
		return "", herr.ErrInvalidParameters
	}
	tx := &transaction{
		id:        newTransactionID(),
		opcode:    op,
		pkt:       pkt,
		callback:  cb,
		await:     awaitEventCode,
		eventCode: completeEvent,
		state:     txQueued,
	}
	c.mu.Lock()
	c.queue = append(c.queue, tx)
	c.mu.Unlock()
	c.pump()
	return tx.id, nil
}

// SendLEAsync is Send for commands whose outcome is reported via an LE
// Meta subevent rather than a well-known event code.
func (c *CommandChannel) SendLEAsync(pkt *packet.Packet, completeSubevent hcidefs.LEEventCode, cb Callback) (TransactionID, error) {
	if pkt.Kind() != packet.KindCommand {
		return "", herr.ErrInvalidParameters
	}
	op := pkt.OpCode()
	if op == hcidefs.NOP {
		return "", herr.ErrInvalidParameters
	}
	tx := &transaction{
		id:         newTransactionID(),
		opcode:     op,
		pkt:        pkt,
		callback:   cb,
		await:      awaitLESubevent,
		leSubevent: completeSubevent,
		state:      txQueued,
	}
	c.mu.Lock()
	c.queue = append(c.queue, tx)
	c.mu.Unlock()
	c.pump()
	return tx.id, nil
}

// Cancel removes a queued command, or (if already in flight) marks it
// so its callback fires with Canceled when the completion arrives —
// the command itself cannot be unsent (spec.md §5).
func (c *CommandChannel) Cancel(id TransactionID) {
	c.mu.Lock()
	for i, tx := range c.queue {
		if tx.id == id {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			c.mu.Unlock()
			c.finish(tx, Result{Err: herr.ErrCanceled})
			return
		}
	}
	// Already sent or awaiting-complete: tag for cancellation on arrival.
	for _, tx := range c.awaitingByEvent {
		if tx.id == id {
			tx.callback = wrapCanceled(tx.callback)
			c.mu.Unlock()
			return
		}
	}
	for _, tx := range c.awaitingByLESub {
		if tx.id == id {
			tx.callback = wrapCanceled(tx.callback)
			c.mu.Unlock()
			return
		}
	}
	if c.sending != nil && c.sending.id == id {
		c.sending.callback = wrapCanceled(c.sending.callback)
	}
	c.mu.Unlock()
}

func wrapCanceled(cb Callback) Callback {
	return func(Result) {
		if cb != nil {
			cb(Result{Err: herr.ErrCanceled})
		}
	}
}

// pump issues the next queued command if credit and the single
// in-flight slot allow it (spec.md §4.3 rules a, c).
func (c *CommandChannel) pump() {
	c.mu.Lock()
	if c.closed || c.sending != nil || c.credits == 0 || len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	tx := c.queue[0]
	c.queue = c.queue[1:]
	c.credits--
	c.sending = tx
	tx.state = txSent
	raw := tx.pkt.View()
	c.mu.Unlock()

	tx.timer = c.timerNew(c.timeout, func() { c.onTimeout(tx) })

	if _, err := c.dev.Write(raw); err != nil {
		c.mu.Lock()
		if c.sending == tx {
			c.sending = nil
		}
		c.mu.Unlock()
		tx.timer.Stop()
		c.finish(tx, Result{Err: herr.ErrIOError})
		c.pump()
		return
	}
}

func (c *CommandChannel) onTimeout(tx *transaction) {
	c.mu.Lock()
	removed := false
	if c.sending == tx {
		c.sending = nil
		removed = true
	}
	for code, t := range c.awaitingByEvent {
		if t == tx {
			delete(c.awaitingByEvent, code)
			removed = true
		}
	}
	for code, t := range c.awaitingByLESub {
		if t == tx {
			delete(c.awaitingByLESub, code)
			removed = true
		}
	}
	c.mu.Unlock()
	if !removed {
		return
	}
	c.finish(tx, Result{Err: herr.ErrTimeout})
	c.log.WithField("opcode", tx.opcode).Error("command timeout")
	c.notifyClosed(herr.ErrTimeout)
}

func (c *CommandChannel) finish(tx *transaction, res Result) {
	if tx.timer != nil {
		tx.timer.Stop()
	}
	if tx.callback != nil {
		tx.callback(res)
	}
}

// readLoop pulls one event frame at a time off the control channel and
// dispatches it. The channel is byte-oriented (spec.md §1): frames are
// not message-delimited by the transport, so the header is read first
// to learn the payload length.
func (c *CommandChannel) readLoop() {
	hdr := make([]byte, eventHeaderLen)
	for {
		if _, err := io.ReadFull(c.dev, hdr); err != nil {
			c.notifyClosed(err)
			return
		}
		plen := int(hdr[1])
		buf := make([]byte, eventHeaderLen+plen)
		copy(buf, hdr)
		if plen > 0 {
			if _, err := io.ReadFull(c.dev, buf[eventHeaderLen:]); err != nil {
				c.notifyClosed(err)
				return
			}
		}
		pkt, err := packet.NewEventPacket(buf)
		if err != nil {
			c.log.WithError(err).Warn("dropping malformed event")
			continue
		}
		c.dispatch(pkt)
	}
}

func (c *CommandChannel) dispatch(pkt *packet.Packet) {
	code := pkt.EventCode()
	params := pkt.Payload()

	switch code {
	case hcidefs.EventCommandStatus, hcidefs.EventCommandComplete:
		c.handleCompletion(code, params)
	case hcidefs.EventLEMeta:
		if len(params) < 1 {
			c.log.Warn("dropping malformed LE meta event")
			return
		}
		sub := hcidefs.LEEventCode(params[0])
		c.completeAwaitingLE(sub, params)
		c.dispatchLE(sub, params[1:])
	default:
		c.completeAwaitingEvent(code, params)
		c.dispatchEvent(code, params)
	}
}

// handleCompletion implements spec.md §4.3's unified CommandStatus /
// CommandComplete matching rule.
func (c *CommandChannel) handleCompletion(code hcidefs.EventCode, params []byte) {
	var opcode hcidefs.OpCode
	var numPackets uint8
	var status herr.Status
	var returnParams []byte

	switch code {
	case hcidefs.EventCommandStatus:
		if len(params) < 4 {
			c.log.Warn("malformed command status")
			return
		}
		status = herr.Status(params[0])
		numPackets = params[1]
		opcode = hcidefs.OpCode(packet.LE.Uint16(params[2:4]))
	case hcidefs.EventCommandComplete:
		if len(params) < 3 {
			c.log.Warn("malformed command complete")
			return
		}
		numPackets = params[0]
		opcode = hcidefs.OpCode(packet.LE.Uint16(params[1:3]))
		returnParams = params[3:]
		if len(returnParams) > 0 {
			status = herr.Status(returnParams[0])
		}
	}

	c.mu.Lock()
	var tx *transaction
	if c.sending != nil && c.sending.opcode == opcode {
		tx = c.sending
	} else {
		for _, t := range c.awaitingByEvent {
			if t.opcode == opcode && t.eventCode == code {
				tx = t
				break
			}
		}
	}
	if tx == nil {
		c.credits = int(numPackets)
		c.mu.Unlock()
		c.log.WithField("opcode", opcode).Debug("no transaction for completion event")
		c.pump()
		return
	}

	finalize := tx.await == awaitEventCode && tx.eventCode == code
	if tx == c.sending {
		c.sending = nil
	} else {
		delete(c.awaitingByEvent, tx.eventCode)
	}
	c.credits = int(numPackets)

	if !finalize && code == hcidefs.EventCommandStatus && status.Ok() {
		// Rule (b): command accepted, real completion arrives later.
		tx.state = txAwaitingComplete
		if tx.await == awaitLESubevent {
			c.awaitingByLESub[tx.leSubevent] = tx
		} else {
			c.awaitingByEvent[tx.eventCode] = tx
		}
		c.mu.Unlock()
		c.pump()
		return
	}
	c.mu.Unlock()

	res := Result{Status: status, ReturnParams: returnParams}
	if !status.Ok() {
		res.Err = status.Err()
	}
	c.finish(tx, res)
	c.pump()
}

func (c *CommandChannel) completeAwaitingEvent(code hcidefs.EventCode, params []byte) {
	c.mu.Lock()
	tx, ok := c.awaitingByEvent[code]
	if ok {
		delete(c.awaitingByEvent, code)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	var status herr.Status
	if len(params) > 0 {
		status = herr.Status(params[0])
	}
	res := Result{Status: status, ReturnParams: params}
	if !status.Ok() {
		res.Err = status.Err()
	}
	c.finish(tx, res)
}

func (c *CommandChannel) completeAwaitingLE(sub hcidefs.LEEventCode, params []byte) {
	c.mu.Lock()
	tx, ok := c.awaitingByLESub[sub]
	if ok {
		delete(c.awaitingByLESub, sub)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	var status herr.Status
	if len(params) > 1 {
		status = herr.Status(params[1])
	}
	res := Result{Status: status, ReturnParams: params}
	if !status.Ok() {
		res.Err = status.Err()
	}
	c.finish(tx, res)
}

func (c *CommandChannel) dispatchEvent(code hcidefs.EventCode, params []byte) {
	c.mu.Lock()
	handlers := append([]EventHandler(nil), c.eventHandlers[code]...)
	c.mu.Unlock()
	if len(handlers) == 0 {
		return
	}
	kept := handlers[:0]
	for _, h := range handlers {
		if h(params) == Continue {
			kept = append(kept, h)
		}
	}
	c.mu.Lock()
	c.eventHandlers[code] = append([]EventHandler(nil), kept...)
	c.mu.Unlock()
}

func (c *CommandChannel) dispatchLE(sub hcidefs.LEEventCode, params []byte) {
	c.mu.Lock()
	handlers := append([]LEEventHandler(nil), c.leHandlers[sub]...)
	c.mu.Unlock()
	if len(handlers) == 0 {
		return
	}
	kept := handlers[:0]
	for _, h := range handlers {
		if h(params) == Continue {
			kept = append(kept, h)
		}
	}
	c.mu.Lock()
	c.leHandlers[sub] = append([]LEEventHandler(nil), kept...)
	c.mu.Unlock()
}

func (c *CommandChannel) notifyClosed(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		if c.closedCb != nil {
			c.closedCb(err)
		}
	})
}

// Close shuts the channel down idempotently, failing any pending
// transactions with Canceled.
func (c *CommandChannel) Close() {
	c.mu.Lock()
	c.closed = true
	pending := append([]*transaction(nil), c.queue...)
	c.queue = nil
	if c.sending != nil {
		pending = append(pending, c.sending)
		c.sending = nil
	}
	for _, t := range c.awaitingByEvent {
		pending = append(pending, t)
	}
	c.awaitingByEvent = make(map[hcidefs.EventCode]*transaction)
	for _, t := range c.awaitingByLESub {
		pending = append(pending, t)
	}
	c.awaitingByLESub = make(map[hcidefs.LEEventCode]*transaction)
	c.mu.Unlock()
	for _, t := range pending {
		c.finish(t, Result{Err: herr.ErrCanceled})
	}
}
