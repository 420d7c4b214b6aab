// Package rendezvous implements a 1-slot admission handoff guarded by an
// atomic "ready" flag, used to admit at most one live broadcaster per
// source at any instant while reserving the slot before any bytes are read
// from the network.
//
// This is a direct translation of original_source/src/sync.rs
// (RendezvousSender/RendezvousReceiver/RendezvousHandle) into Go idioms: the
// Rust Drop guard that restores ready=true becomes an explicit Handle.Release
// the caller must defer, since Go has no destructors.
package rendezvous

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrBusy is returned by Send when a handoff is already in flight.
var ErrBusy = errors.New("rendezvous: busy")

// ErrDisconnected is returned by Send when the receiver side is gone, and by
// Recv when its context is done before a value arrives.
var ErrDisconnected = errors.New("rendezvous: disconnected")

// ErrTimeout is returned by RecvDeadline when no Send arrives before the
// deadline.
var ErrTimeout = errors.New("rendezvous: timeout")

type channel[T any] struct {
	ready    atomic.Bool
	slot     chan T
	done     chan struct{}
	closeErr chan struct{} // closed when the receiver tears down
}

// New creates a rendezvous channel. ready starts true (the slot is open).
func New[T any]() (*Sender[T], *Receiver[T]) {
	ch := &channel[T]{
		slot:     make(chan T),
		done:     make(chan struct{}),
		closeErr: make(chan struct{}),
	}
	ch.ready.Store(true)
	return &Sender[T]{ch: ch}, &Receiver[T]{ch: ch}
}

// Sender is the write-side handle.
type Sender[T any] struct {
	ch *channel[T]
}

// Send atomically flips ready from true to false; if it was already false,
// it returns ErrBusy without attempting the handoff. On a successful flip it
// performs the blocking synchronous handoff with the receiver; if the
// receiver has torn down, it restores ready to true and returns
// ErrDisconnected.
func (s *Sender[T]) Send(value T) error {
	r, err := s.Reserve()
	if err != nil {
		return err
	}
	return r.Commit(value)
}

// Reserve atomically flips ready from true to false and returns a
// Reservation the caller completes later, once the value to hand off is
// ready. This splits Send's all-at-once CAS-then-handoff so a caller can
// fail fast on ErrBusy before doing expensive preparation (e.g.
// constructing a decoder) that would otherwise need to be thrown away.
func (s *Sender[T]) Reserve() (*Reservation[T], error) {
	if !s.ch.ready.CompareAndSwap(true, false) {
		return nil, ErrBusy
	}
	return &Reservation[T]{ch: s.ch}, nil
}

// Reservation is a held admission slot awaiting its value. Exactly one of
// Commit or Abort must be called.
type Reservation[T any] struct {
	ch   *channel[T]
	done atomic.Bool
}

// Commit performs the blocking synchronous handoff. If the receiver has
// torn down, it restores ready to true and returns ErrDisconnected.
func (r *Reservation[T]) Commit(value T) error {
	if !r.done.CompareAndSwap(false, true) {
		return nil
	}
	select {
	case r.ch.slot <- value:
		return nil
	case <-r.ch.closeErr:
		// receiver gone; re-open the slot so future Sends see Disconnected,
		// not Busy.
		r.ch.ready.Store(true)
		return ErrDisconnected
	}
}

// Abort releases the reservation without performing the handoff, re-opening
// the slot for the next Sender. Used when preparation fails after the slot
// was reserved (e.g. the decoder could not be constructed from the
// admitted connection). Idempotent; a no-op once Commit has run.
func (r *Reservation[T]) Abort() {
	if r.done.CompareAndSwap(false, true) {
		r.ch.ready.Store(true)
	}
}

// Receiver is the read-side handle.
type Receiver[T any] struct {
	ch *channel[T]
}

// Handle is a scoped guard around an admitted value. The caller must call
// Release exactly once (typically via defer) when done servicing the
// session; Release re-opens the slot for the next Sender.
type Handle[T any] struct {
	Value   T
	release func()
	done    atomic.Bool
}

// Release restores ready to true, re-opening the slot. Idempotent.
func (h *Handle[T]) Release() {
	if h.done.CompareAndSwap(false, true) {
		h.release()
	}
}

// Recv blocks until a value is admitted or ctx is done.
func (r *Receiver[T]) Recv(ctx context.Context) (*Handle[T], error) {
	select {
	case v := <-r.ch.slot:
		return &Handle[T]{Value: v, release: func() { r.ch.ready.Store(true) }}, nil
	case <-ctx.Done():
		return nil, ErrDisconnected
	}
}

// RecvDeadline blocks for a value until deadline, returning ErrTimeout if
// none arrives in time.
func (r *Receiver[T]) RecvDeadline(deadline time.Time) (*Handle[T], error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case v := <-r.ch.slot:
		return &Handle[T]{Value: v, release: func() { r.ch.ready.Store(true) }}, nil
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Close tears down the receiver side. Any in-flight or future Send returns
// ErrDisconnected and ready is left true.
func (r *Receiver[T]) Close() {
	close(r.ch.closeErr)
}
