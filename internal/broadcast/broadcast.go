// Package broadcast implements a typed 1-to-N publish/subscribe primitive:
// one publisher, many independent subscribers, a bounded per-subscriber
// queue, and a non-blocking publish that drops on slow consumers instead of
// backpressuring the producer.
//
// It generalizes Studio.feed/listeners's fan-out shape (one publisher, a
// map of per-listener channels, drop-when-full) into a standalone generic
// type reusable for both the PCM path (Source->Stream) and the
// encoded-bytes path (Stream->Listener).
package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrNoPublisher is returned by Subscribe once the Publisher has been closed.
var ErrNoPublisher = errors.New("broadcast: no publisher")

// ErrClosed is returned by Recv/TryRecv once the publisher is gone and the
// receiver's queue has drained.
var ErrClosed = errors.New("broadcast: closed")

// ErrEmpty is returned by TryRecv when no value is currently available.
var ErrEmpty = errors.New("broadcast: empty")

// Broadcast is the shared state between a Publisher and a SubscriberFactory.
type Broadcast[T any] struct {
	depth int

	mu     sync.RWMutex
	subs   map[*Receiver[T]]struct{}
	closed bool
}

// New creates a broadcast with the given per-subscriber queue depth. depth
// must be >= 1; the PCM path uses 1 (only the freshest undelivered item
// matters), some encoded-bytes paths use a deeper queue to tolerate brief
// listener stalls -- this is a tuning parameter, not a fixed semantic.
func New[T any](depth int) (*Publisher[T], *SubscriberFactory[T]) {
	if depth < 1 {
		depth = 1
	}
	b := &Broadcast[T]{
		depth: depth,
		subs:  make(map[*Receiver[T]]struct{}),
	}
	return &Publisher[T]{b: b}, &SubscriberFactory[T]{b: b}
}

// Publisher is the single write-side handle for a Broadcast.
type Publisher[T any] struct {
	b *Broadcast[T]
}

// Publish delivers v to every live subscriber's queue without blocking. If a
// subscriber's queue is full, the item is dropped for that subscriber only;
// delivery to other subscribers is unaffected. Subscribers whose receive end
// has already been closed are pruned from the set on this same pass.
func (p *Publisher[T]) Publish(v T) {
	b := p.b

	b.mu.RLock()
	dead := make([]*Receiver[T], 0)
	for r := range b.subs {
		if r.isClosed() {
			dead = append(dead, r)
			continue
		}
		select {
		case r.ch <- v:
		default:
			// queue full but still live: drop this item for this
			// subscriber, never block the publisher.
		}
	}
	b.mu.RUnlock()

	if len(dead) > 0 {
		b.mu.Lock()
		for _, r := range dead {
			delete(b.subs, r)
		}
		b.mu.Unlock()
	}
}

// Close tears down the publisher side. Every live Receiver observes a
// Closed result once its queue drains, and every future Subscribe call
// returns ErrNoPublisher.
func (p *Publisher[T]) Close() {
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for r := range b.subs {
		close(r.done)
	}
	b.subs = nil
}

// SubscriberFactory is the handle other goroutines use to attach a new
// Receiver to the broadcast.
type SubscriberFactory[T any] struct {
	b *Broadcast[T]
}

// Subscribe returns a new receive handle backed by its own bounded queue.
func (f *SubscriberFactory[T]) Subscribe() (*Receiver[T], error) {
	b := f.b

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrNoPublisher
	}

	r := &Receiver[T]{
		ch:   make(chan T, b.depth),
		done: make(chan struct{}),
	}
	b.subs[r] = struct{}{}
	return r, nil
}

// Receiver is a subscriber's read-side handle.
type Receiver[T any] struct {
	ch   chan T
	done chan struct{}

	closedMu sync.Mutex
	closed   bool
}

func (r *Receiver[T]) isClosed() bool {
	r.closedMu.Lock()
	defer r.closedMu.Unlock()
	return r.closed
}

// Close detaches the receiver. A subsequent Publish pass will prune it from
// the subscriber set. Safe to call more than once.
func (r *Receiver[T]) Close() {
	r.closedMu.Lock()
	defer r.closedMu.Unlock()
	r.closed = true
}

// Recv blocks until a value is available, the publisher closes (ErrClosed),
// or ctx is done.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-r.ch:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-r.done:
		// publisher closed; drain any values still queued before reporting
		// Closed so ordering is preserved.
		select {
		case v, ok := <-r.ch:
			if ok {
				return v, nil
			}
		default:
		}
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// TryRecv returns the next value without blocking, ErrEmpty if none is
// available yet, or ErrClosed once the publisher is gone and the queue has
// drained.
func (r *Receiver[T]) TryRecv() (T, error) {
	var zero T
	select {
	case v, ok := <-r.ch:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	default:
	}

	select {
	case <-r.done:
		select {
		case v, ok := <-r.ch:
			if ok {
				return v, nil
			}
		default:
		}
		return zero, ErrClosed
	default:
		return zero, ErrEmpty
	}
}
