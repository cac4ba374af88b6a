package client

import "sync"

// Broadcaster fans a signal out to any number of subscribers. It replaces the
// ambient "fire a global event and hope someone listens" pattern: the
// application constructs one at its root and injects it into the components
// that care (the notification bell and the notification page both subscribe,
// and the gateway handler set publishes).
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func())}
}

// Subscribe registers a callback and returns its cancel function. Cancelling
// twice is harmless.
func (b *Broadcaster) Subscribe(fn func()) (cancel func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Notify invokes every currently-subscribed callback. Callbacks follow the
// same rule as event handlers: enqueue work, never block.
func (b *Broadcaster) Notify() {
	b.mu.Lock()
	subs := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
