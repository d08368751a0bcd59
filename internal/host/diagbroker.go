package host

import "sync"

// subscriberBufferSize is the channel buffer for each diagnostic subscriber.
// Diagnostics are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// DiagBroker fans diagnostics out to live subscribers. It is safe for
// concurrent use. After Close every current and future subscriber receives a
// closed channel.
type DiagBroker struct {
	mu     sync.Mutex
	subs   map[int]chan Diagnostic
	nextID int
	closed bool
}

// NewDiagBroker creates a new diagnostic broker.
func NewDiagBroker() *DiagBroker {
	return &DiagBroker{
		subs: make(map[int]chan Diagnostic),
	}
}

// Subscribe returns a channel that receives diagnostics published from now on
// and an unsubscribe function.
func (b *DiagBroker) Subscribe() (<-chan Diagnostic, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Diagnostic, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers d to every subscriber, dropping it for subscribers whose
// buffers are full.
func (b *DiagBroker) Publish(d Diagnostic) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- d:
		default:
			// Slow subscriber; never block the diagnostic sink.
		}
	}
}

// Close closes all subscriber channels.
func (b *DiagBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
