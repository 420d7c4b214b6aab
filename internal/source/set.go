package source

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ivugurura/edicast/config"
	"github.com/ivugurura/edicast/internal/audio"
	"github.com/ivugurura/edicast/internal/broadcast"
	"github.com/ivugurura/edicast/internal/rendezvous"
)

// ErrNoSuchSource is returned by Set.Reserve and Set.Subscribe when name is
// not a configured source.
var ErrNoSuchSource = errors.New("source: no such source")

// entry bundles one named source's admission sender and PCM subscriber
// factory, the two handles the rest of the process needs after startup.
type entry struct {
	sender *rendezvous.Sender[*Session]
	subs   *broadcast.SubscriberFactory[*audio.PcmFrame]
}

// Set owns every configured Source worker for the process lifetime. It is
// built once at startup from config.Config and never mutated afterward:
// every Source and Stream worker is created once, at startup.
type Set struct {
	entries map[string]entry
}

// NewSet constructs one Worker per entry in cfg, starts each worker's
// goroutine under ctx, and returns the Set used to route control and stream
// wiring to them.
func NewSet(ctx context.Context, cfg map[string]config.SourceConfig, logger *slog.Logger) *Set {
	s := &Set{entries: make(map[string]entry, len(cfg))}
	for name, sc := range cfg {
		w, sender, subs := NewWorker(name, sc, logger)
		s.entries[name] = entry{sender: sender, subs: subs}
		go w.Run(ctx)
	}
	return s
}

// Reserve atomically reserves the named source's admission slot without
// performing the handoff, returning the Reservation the control endpoint
// completes (Commit) once a Session is ready, or releases (Abort) if
// preparation fails. Fails fast with ErrBusy/ErrNoSuchSource before any
// decoder construction happens.
func (s *Set) Reserve(name string) (*rendezvous.Reservation[*Session], error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, ErrNoSuchSource
	}
	return e.sender.Reserve()
}

// Subscribe attaches a new PCM receiver to the named source's broadcast,
// returning ErrNoSuchSource if name is not configured.
func (s *Set) Subscribe(name string) (*broadcast.Receiver[*audio.PcmFrame], error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, ErrNoSuchSource
	}
	return e.subs.Subscribe()
}
