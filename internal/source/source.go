// Package source implements the Source worker: one per configured source,
// enforcing single-writer admission via a rendezvous channel and an
// "offline behaviour" policy, and publishing paced PCM batches onto a
// broadcast channel for Stream workers to consume.
//
// Grounded on internal/stream/studio.go's HandleLiveIngest/distribute loop
// shape, generalized per original_source/src/source.rs
// (source_thread_main/run_source and the silence timer).
package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ivugurura/edicast/config"
	"github.com/ivugurura/edicast/internal/audio"
	"github.com/ivugurura/edicast/internal/broadcast"
	"github.com/ivugurura/edicast/internal/rendezvous"
)

// Session is handed to a Source worker through the rendezvous channel once
// a broadcaster connection has been admitted. Done, if set, is called
// exactly once when the session ends, letting the control endpoint release
// the underlying HTTP connection.
type Session struct {
	Decoder audio.Decoder
	Done    func(err error)
}

// Worker runs one configured source's admission/pacing/publish loop for the
// lifetime of the process.
type Worker struct {
	name string
	cfg  config.SourceConfig
	recv *rendezvous.Receiver[*Session]
	pub  *broadcast.Publisher[*audio.PcmFrame]
	log  *slog.Logger
}

// NewWorker constructs a Worker along with the Sender the control endpoint
// uses to admit broadcasters and the SubscriberFactory Stream workers use
// to attach to its PCM output.
func NewWorker(name string, cfg config.SourceConfig, logger *slog.Logger) (*Worker, *rendezvous.Sender[*Session], *broadcast.SubscriberFactory[*audio.PcmFrame]) {
	sender, receiver := rendezvous.New[*Session]()
	pub, subs := broadcast.New[*audio.PcmFrame](1)
	w := &Worker{
		name: name,
		cfg:  cfg,
		recv: receiver,
		pub:  pub,
		log:  logger.With("source", name),
	}
	return w, sender, subs
}

// Run executes the worker's outer loop until ctx is done, dispatching to
// the inactive or silence offline policy per cfg.Offline.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("source worker started", "offline", w.cfg.Offline)
	if w.cfg.Offline == config.OfflineSilence {
		w.runSilence(ctx)
	} else {
		w.runInactive(ctx)
	}
	w.log.Info("source worker stopped")
}

// runInactive blocks on rendezvous admission indefinitely, running each
// admitted session to completion before waiting for the next one.
func (w *Worker) runInactive(ctx context.Context) {
	for {
		handle, err := w.recv.Recv(ctx)
		if err != nil {
			return
		}
		w.runSession(handle)
	}
}

// runSilence publishes looped silence frames while idle, preempting the
// silence loop the instant a broadcaster is admitted.
func (w *Worker) runSilence(ctx context.Context) {
	bufferDur := time.Duration(w.cfg.BufferMS) * time.Millisecond
	silence := audio.Silence(bufferDur)

	for {
		epoch := time.Now()
		var elapsed time.Duration

		for {
			elapsed += bufferDur
			handle, err := w.recv.RecvDeadline(epoch.Add(elapsed))
			switch {
			case errors.Is(err, rendezvous.ErrTimeout):
				w.pub.Publish(silence)
				select {
				case <-ctx.Done():
					return
				default:
				}
				continue
			case errors.Is(err, rendezvous.ErrDisconnected):
				return
			case err != nil:
				return
			default:
				w.runSession(handle)
			}
			break
		}
	}
}

// runSession drives one admitted broadcaster connection from its first
// decoded frame to end-of-stream, pacing publication to wall-clock time per
// original_source/src/source.rs's run_source algorithm.
func (w *Worker) runSession(handle *rendezvous.Handle[*Session]) {
	defer handle.Release()
	sess := handle.Value
	w.log.Info("session started")

	if closer, ok := sess.Decoder.(io.Closer); ok {
		defer closer.Close()
	}

	epoch := time.Now()
	elapsed := audio.Zero()

	var residue []int16
	var residueRate, residueChannels int

	var endErr error
sessionLoop:
	for {
		time.Sleep(time.Until(epoch.Add(elapsed.Duration())))

		frame, err := sess.Decoder.Read()
		switch {
		case err == nil:
			if frame.SampleRate != residueRate || frame.Channels != residueChannels {
				residue = residue[:0]
				residueRate = frame.SampleRate
				residueChannels = frame.Channels
			}
			residue = append(residue, frame.Samples...)

			bufferSamples := w.cfg.BufferMS * residueRate / 1000
			if residueChannels > 0 && bufferSamples > 0 {
				batchLen := bufferSamples * residueChannels
				for len(residue) >= batchLen {
					batch := make([]int16, batchLen)
					copy(batch, residue[:batchLen])
					w.pub.Publish(&audio.PcmFrame{
						SampleRate: residueRate,
						Channels:   residueChannels,
						Samples:    batch,
					})
					residue = residue[batchLen:]
				}
			}
			elapsed = elapsed.Add(frame.SampleCount(), frame.SampleRate)

		case errors.Is(err, audio.ErrSkippedData), errors.Is(err, audio.ErrMalformedFrame):
			continue sessionLoop

		case errors.Is(err, io.EOF):
			w.log.Info("session ended", "reason", "eof")
			break sessionLoop

		default:
			endErr = err
			w.log.Error("session ended", "reason", "io error", "error", err)
			break sessionLoop
		}
	}

	if sess.Done != nil {
		sess.Done(endErr)
	}
}
