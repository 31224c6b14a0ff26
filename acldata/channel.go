package acldata

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/braidwire/hcicore/herr"
	"github.com/braidwire/hcicore/packet"
)

// ACLDataChannel schedules outbound ACL packets across registered
// links (it does not fragment: Send rejects a payload longer than the
// link type's max data length), reassembles inbound fragments, and tracks
// Number-Of-Completed-Packets credit per spec.md §4.4. If leInfo is
// the zero value, LE links share the BR/EDR pool.
type ACLDataChannel struct {
	log *logrus.Entry
	dev io.ReadWriter

	brEdrInfo DataBufferInfo
	leInfo    DataBufferInfo
	brEdrPool *creditPool
	lePool    *creditPool

	closedCb  func(error)
	closeOnce sync.Once

	mu        sync.Mutex
	links     map[uint16]*link
	order     []uint16 // round-robin schedule order
	rrCursor  int
	reassemblyErrors int
	onLinkClosed LinkCloseCallback

	wake chan struct{}
	done chan struct{}
}

// New constructs an ACLDataChannel over dev.
func New(dev io.ReadWriter, brEdrInfo, leInfo DataBufferInfo, log *logrus.Entry, closedCb func(error)) *ACLDataChannel {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	brEdrPool := newCreditPool(brEdrInfo.MaxNumPackets)
	lePool := brEdrPool
	if !leInfo.isZero() {
		lePool = newCreditPool(leInfo.MaxNumPackets)
	}
	c := &ACLDataChannel{
		log:       log.WithField("component", "acldata"),
		dev:       dev,
		brEdrInfo: brEdrInfo,
		leInfo:    leInfo,
		brEdrPool: brEdrPool,
		lePool:    lePool,
		links:     make(map[uint16]*link),
		closedCb:  closedCb,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	go c.scheduleLoop()
	return c
}

// OnLinkClosedByChannel registers the callback invoked when the
// channel itself closes a link (oversized reassembly).
func (c *ACLDataChannel) OnLinkClosedByChannel(cb LinkCloseCallback) {
	c.mu.Lock()
	c.onLinkClosed = cb
	c.mu.Unlock()
}

// RegisterLink admits handle for outbound scheduling and inbound
// dispatch.
func (c *ACLDataChannel) RegisterLink(handle uint16, lt LinkType, rx ConnectionCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.links[handle]; exists {
		return
	}
	c.links[handle] = newLink(handle, lt, rx)
	c.order = append(c.order, handle)
}

// UnregisterLink drains the link's queue, returns its claimed credits
// to the pool, and drops any partial reassembly (spec.md §4.4).
func (c *ACLDataChannel) UnregisterLink(handle uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.links[handle]
	if !ok {
		return
	}
	if l.outstanding > 0 {
		c.poolFor(l.linkType).restore(l.outstanding)
	}
	delete(c.links, handle)
	for i, h := range c.order {
		if h == handle {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *ACLDataChannel) poolFor(lt LinkType) *creditPool {
	if lt == LinkLE {
		return c.lePool
	}
	return c.brEdrPool
}

func (c *ACLDataChannel) maxDataLengthFor(lt LinkType) int {
	if lt == LinkLE && !c.leInfo.isZero() {
		return c.leInfo.MaxDataLength
	}
	return c.brEdrInfo.MaxDataLength
}

// Send enqueues pkt on handle's outbound queue. priority is accepted
// for API fidelity with spec.md §4.4 but this implementation treats
// all queued packets within a link as FIFO.
func (c *ACLDataChannel) Send(pkt *packet.Packet, lt LinkType, _ Priority) error {
	handle := pkt.ConnectionHandle()
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.links[handle]
	if !ok {
		return herr.ErrInvalidParameters
	}
	if len(pkt.Payload()) > c.maxDataLengthFor(lt) {
		return herr.ErrInvalidParameters
	}
	l.enqueue(pkt)
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// scheduleLoop round-robins across links with queued packets and
// available credit, writing one packet per turn (spec.md §4.4).
func (c *ACLDataChannel) scheduleLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}
		for c.dispatchOne() {
		}
	}
}

func (c *ACLDataChannel) dispatchOne() bool {
	c.mu.Lock()
	n := len(c.order)
	if n == 0 {
		c.mu.Unlock()
		return false
	}
	for i := 0; i < n; i++ {
		idx := (c.rrCursor + i) % n
		handle := c.order[idx]
		l := c.links[handle]
		if l == nil || len(l.outbound) == 0 {
			continue
		}
		pool := c.poolFor(l.linkType)
		if !pool.take() {
			continue
		}
		pkt := l.dequeue()
		l.outstanding++
		c.rrCursor = (idx + 1) % n
		c.mu.Unlock()
		if _, err := c.dev.Write(pkt.View()); err != nil {
			c.log.WithError(err).Warn("acl write failed")
		}
		return true
	}
	c.mu.Unlock()
	return false
}

// HandleNumberOfCompletedPackets restores credit per (handle, count)
// pair, as reported by the controller over the control channel.
// Credit for an unknown handle is still returned to the pool (spec.md
// §4.4: a race with disconnection must not leak controller credit).
func (c *ACLDataChannel) HandleNumberOfCompletedPackets(numHandles int, handles []uint16, counts []uint16) {
	c.mu.Lock()
	for i := 0; i < numHandles; i++ {
		handle, count := handles[i], int(counts[i])
		l, ok := c.links[handle]
		if ok {
			if l.outstanding >= count {
				l.outstanding -= count
			} else {
				l.outstanding = 0
			}
			c.poolFor(l.linkType).restore(count)
		} else {
			c.brEdrPool.restore(count)
		}
	}
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// readLoop consumes inbound ACL frames and feeds them to the matching
// link's reassembler.
func (c *ACLDataChannel) readLoop() {
	hdr := make([]byte, 4)
	for {
		if _, err := io.ReadFull(c.dev, hdr); err != nil {
			c.notifyClosed(err)
			return
		}
		dlen := int(packet.LE.Uint16(hdr[2:4]))
		buf := make([]byte, 4+dlen)
		copy(buf, hdr)
		if dlen > 0 {
			if _, err := io.ReadFull(c.dev, buf[4:]); err != nil {
				c.notifyClosed(err)
				return
			}
		}
		pkt, err := packet.NewACLDataPacketFromWire(buf)
		if err != nil {
			c.log.WithError(err).Warn("dropping malformed acl frame")
			continue
		}
		c.handleInbound(pkt)
	}
}

func (c *ACLDataChannel) handleInbound(pkt *packet.Packet) {
	handle := pkt.ConnectionHandle()
	c.mu.Lock()
	l, ok := c.links[handle]
	if !ok {
		c.mu.Unlock()
		return
	}
	if pkt.PacketBoundaryFlag() == packet.PBContinuing && !l.reassembling {
		c.reassemblyErrors++
		c.mu.Unlock()
		return
	}
	pdu, delivered, oversize := l.feed(pkt)
	rx := l.rx
	closeCb := c.onLinkClosed
	c.mu.Unlock()

	if oversize {
		c.log.WithField("handle", handle).Warn("acl reassembly exceeded max pdu, closing link")
		c.UnregisterLink(handle)
		if closeCb != nil {
			closeCb(handle, herr.ErrPacketMalformed)
		}
		return
	}
	if delivered && rx != nil {
		rx(pdu)
	}
}

// ReassemblyErrors reports the count of CONT fragments received with
// no in-progress reassembly (spec.md §4.4).
func (c *ACLDataChannel) ReassemblyErrors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reassemblyErrors
}

func (c *ACLDataChannel) notifyClosed(err error) {
	first := false
	c.closeOnce.Do(func() {
		first = true
		close(c.done)
	})
	// Invoked outside Do so the callback may call Close again.
	if first && c.closedCb != nil {
		c.closedCb(err)
	}
}

// Close shuts the channel down idempotently.
func (c *ACLDataChannel) Close() {
	c.notifyClosed(nil)
}
