package hub

import "sync"

// Outbox is a bounded drop-oldest queue of encoded frames.
// Push never blocks, a slow reader loses its oldest frames.
type Outbox struct {
	mu      sync.Mutex
	frames  [][]byte
	head    int
	size    int
	dropped uint64
	ready   chan struct{}
}

func NewOutbox(capacity int) *Outbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &Outbox{frames: make([][]byte, capacity), ready: make(chan struct{}, 1)}
}

// Push enqueues a frame and reports whether an older one was dropped.
func (o *Outbox) Push(frame []byte) bool {
	o.mu.Lock()
	dropped := false
	idx := (o.head + o.size) % len(o.frames)
	if o.size == len(o.frames) {
		o.frames[o.head] = nil
		o.head = (o.head + 1) % len(o.frames)
		o.dropped++
		dropped = true
		idx = (o.head + o.size - 1) % len(o.frames)
	} else {
		o.size++
	}
	o.frames[idx] = frame
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
	return dropped
}

func (o *Outbox) Pop() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.size == 0 {
		return nil, false
	}
	f := o.frames[o.head]
	o.frames[o.head] = nil
	o.head = (o.head + 1) % len(o.frames)
	o.size--
	return f, true
}

// Ready is signaled after a push, the reader then pops until empty.
func (o *Outbox) Ready() <-chan struct{} { return o.ready }

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.size
}

func (o *Outbox) Dropped() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
