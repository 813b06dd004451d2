// Package session carries session-expiry detection: an HTTP interceptor that
// notices the backend has dropped the session, and the bus that tells the
// app shell about it.
package session

import "sync"

// Bus is a broadcast channel with no replay. A value published before a
// subscriber attaches is never delivered to it.
//
// Publish never blocks: each subscriber owns a single-slot buffer, and a
// value published while the slot is still full replaces the pending one.
// Subscribers therefore consume asynchronously, always see the latest value,
// and cannot re-enter the publisher.
type Bus[T any] struct {
	mu   sync.Mutex
	subs map[*Subscription[T]]struct{}
}

// NewBus returns an empty Bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[*Subscription[T]]struct{})}
}

// Subscription receives values published after Subscribe returned.
type Subscription[T any] struct {
	bus  *Bus[T]
	ch   chan T
	once sync.Once
}

// Subscribe attaches a new subscriber.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{bus: b, ch: make(chan T, 1)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers v to every live subscriber and returns how many there
// were. An undelivered earlier value is dropped in favour of v.
func (b *Bus[T]) Publish(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- v:
			continue
		default:
		}
		// Only publishers send, and they hold b.mu, so after the drain the
		// slot is free.
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- v
	}
	return len(b.subs)
}

// Subscribers returns the number of live subscribers.
func (b *Bus[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// C returns the receive channel. It is closed by Close.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close detaches the subscriber and closes its channel.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		close(s.ch)
		s.bus.mu.Unlock()
	})
}
