// Package relay wires the configured Source and Stream workers together at
// startup and exposes the lookups the HTTP layer needs: admitting a
// broadcaster onto a named source, and routing a listener's path to a
// stream's encoded-bytes broadcast.
//
// Adapted from internal/stream/manager.go's Manager studio registry and
// cmd/server/main.go's wiring, generalized from a dynamic runtime-register
// API to a fixed, every-worker-created-once-at-startup lifecycle.
package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ivugurura/edicast/config"
	"github.com/ivugurura/edicast/internal/analytics"
	"github.com/ivugurura/edicast/internal/audio"
	"github.com/ivugurura/edicast/internal/audio/mp3decode"
	"github.com/ivugurura/edicast/internal/audio/mp3encode"
	"github.com/ivugurura/edicast/internal/audio/oggdecode"
	"github.com/ivugurura/edicast/internal/broadcast"
	"github.com/ivugurura/edicast/internal/relaystream"
	"github.com/ivugurura/edicast/internal/rendezvous"
	"github.com/ivugurura/edicast/internal/source"
)

// encodedQueueDepth is the per-subscriber queue depth for Stream→Listener
// broadcasts, kept deeper than the PCM path's depth of 1 to tolerate brief
// listener stalls (DESIGN.md Open Question resolution).
const encodedQueueDepth = 8

// Relay owns every Source and Stream worker for the process lifetime.
type Relay struct {
	sources *source.Set
	streams map[string]streamRoute
	log     *slog.Logger
}

type streamRoute struct {
	mime string
	subs *broadcast.SubscriberFactory[[]byte]
}

// New builds the Source set, then one Stream worker per configured stream
// subscribed to its source's PCM output, starting every worker's goroutine
// under ctx.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Relay, error) {
	sources := source.NewSet(ctx, cfg.Source, logger)

	streams := make(map[string]streamRoute, len(cfg.Stream))
	for name, sc := range cfg.Stream {
		rx, err := sources.Subscribe(sc.Source)
		if err != nil {
			return nil, fmt.Errorf("relay: stream %q: %w", name, err)
		}

		enc, mime, err := buildEncoder(sc.Codec)
		if err != nil {
			return nil, fmt.Errorf("relay: stream %q: %w", name, err)
		}

		w, subs := relaystream.NewWorker(name, sc, rx, enc, encodedQueueDepth, logger)
		go w.Run(ctx)

		codec := "unknown"
		if d, ok := enc.(interface{ Describe() string }); ok {
			codec = d.Describe()
		}
		logger.Info("stream configured", "stream", name, "path", sc.Path, "codec", codec)

		streams[sc.Path] = streamRoute{mime: mime, subs: subs}
	}

	return &Relay{sources: sources, streams: streams, log: logger}, nil
}

// ReserveSource atomically reserves the named source's admission slot, for
// the control endpoint. Errors are source.ErrNoSuchSource or
// rendezvous.ErrBusy.
func (r *Relay) ReserveSource(name string) (*rendezvous.Reservation[*source.Session], error) {
	return r.sources.Reserve(name)
}

// LookupStream resolves an HTTP path to the stream's encoded-bytes
// subscriber factory and MIME type, for the public endpoint.
func (r *Relay) LookupStream(path string) (subs *broadcast.SubscriberFactory[[]byte], mime string, ok bool) {
	route, ok := r.streams[path]
	if !ok {
		return nil, "", false
	}
	return route.subs, route.mime, true
}

// StreamNames returns every configured stream's HTTP path, for periodic
// status logging.
func (r *Relay) StreamNames() []string {
	names := make([]string, 0, len(r.streams))
	for path := range r.streams {
		names = append(names, path)
	}
	return names
}

// StartMonitor logs a snapshot of every stream's active listener count
// every interval, until ctx is done. Adapted from Manager.StartMonitor
// (ticker + log.Printf of the studio registry), generalized to log
// per-stream listener counts sourced from the listener store instead of
// just the worker registry.
func (r *Relay) StartMonitor(ctx context.Context, store snapshotStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	names := r.StreamNames()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		snap := store.Snapshot(names)
		r.log.Info("relay monitor", "total_active", snap.TotalActive, "streams", snap.Streams)
	}
}

// snapshotStore is the subset of *listeners.Store's Snapshot method
// StartMonitor needs, kept as an interface so relay does not import
// internal/listeners just for this one call.
type snapshotStore interface {
	Snapshot(streamNames []string) analytics.Snapshot
}

// NewDecoder constructs an audio.Decoder for contentType reading from r, for
// the control endpoint's decoder-construction step. Returns an error for an
// unsupported content type or (for Ogg) invalid stream headers.
func NewDecoder(contentType string, r io.Reader) (audio.Decoder, error) {
	switch contentType {
	case "audio/mpeg", "audio/mp3":
		return mp3decode.New(r), nil
	case "audio/ogg", "application/ogg":
		return oggdecode.New(r)
	default:
		return nil, fmt.Errorf("relay: unsupported content type %q", contentType)
	}
}

// MimeTypeFor reports whether contentType is one of the supported codec
// content types, for the control endpoint's dispatch step.
func MimeTypeFor(contentType string) bool {
	switch contentType {
	case "audio/mpeg", "audio/mp3", "audio/ogg", "application/ogg":
		return true
	default:
		return false
	}
}

func buildEncoder(c config.Codec) (audio.Encoder, string, error) {
	switch c.Type {
	case "mp3":
		if c.Mp3 == nil {
			return nil, "", fmt.Errorf("codec type %q missing mp3 parameters", c.Type)
		}
		return mp3encode.New(*c.Mp3), mp3encode.MimeType(), nil
	default:
		return nil, "", fmt.Errorf("unsupported codec type %q", c.Type)
	}
}
