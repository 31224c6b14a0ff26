package acldata

import "sync"

// creditPool tracks outstanding-packet credit for one controller
// buffer, in the manner of the teacher's bufCnt channel (linux/l2cap.go)
// but exposed as a plain counter so Number Of Completed Packets can
// restore an arbitrary count at once rather than one channel receive
// per packet.
type creditPool struct {
	mu      sync.Mutex
	credits int
}

func newCreditPool(initial int) *creditPool {
	return &creditPool{credits: initial}
}

func (p *creditPool) available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.credits > 0
}

func (p *creditPool) take() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.credits == 0 {
		return false
	}
	p.credits--
	return true
}

func (p *creditPool) restore(n int) {
	p.mu.Lock()
	p.credits += n
	p.mu.Unlock()
}
