package relay

import "sync"

// pending maps a correlation ID to a not-yet-resolved reply slot. A slot is
// resolved at most once and cleared on resolution or on Close.
type pending struct {
	mu     sync.Mutex
	slots  map[string]chan []byte
	closed bool
}

func newPending() *pending {
	return &pending{slots: make(map[string]chan []byte)}
}

// add registers interest in a reply for the given correlation ID and
// returns the channel the reply will arrive on. The channel is buffered so
// resolve never blocks.
func (p *pending) add(id string) (<-chan []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if _, exists := p.slots[id]; exists {
		return nil, ErrDuplicateID
	}
	ch := make(chan []byte, 1)
	p.slots[id] = ch
	return ch, nil
}

// resolve delivers a reply for the given ID and clears the slot. It reports
// whether a slot was waiting; a second resolve for the same ID is a no-op.
func (p *pending) resolve(id string, payload []byte) bool {
	p.mu.Lock()
	ch, ok := p.slots[id]
	if ok {
		delete(p.slots, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- payload
	return true
}

// drop clears a slot without delivering a reply (caller gave up).
func (p *pending) drop(id string) {
	p.mu.Lock()
	delete(p.slots, id)
	p.mu.Unlock()
}

// close resolves nothing and clears every slot; subsequent adds fail with
// ErrClosed. Waiters see their channel stay silent; the owning process is
// tearing down and no longer cares.
func (p *pending) close() {
	p.mu.Lock()
	p.slots = make(map[string]chan []byte)
	p.closed = true
	p.mu.Unlock()
}

// size reports the number of in-flight slots (for inspection and tests).
func (p *pending) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
