// Package relaystream implements the Stream worker: one per configured
// output, subscribing to its source's PCM broadcast, encoding each frame,
// and republishing the encoded bytes for listeners.
//
// Grounded on internal/stream/studio.go's distribute() fan-out shape
// applied to encode-then-publish instead of passthrough, and on
// original_source/src/stream.rs (stream_thread_main), including its
// documented panic on unexpected source-stream termination.
package relaystream

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ivugurura/edicast/config"
	"github.com/ivugurura/edicast/internal/audio"
	"github.com/ivugurura/edicast/internal/broadcast"
)

// Worker runs one configured stream's encode/publish loop for the lifetime
// of the process.
type Worker struct {
	name string
	cfg  config.StreamConfig
	rx   *broadcast.Receiver[*audio.PcmFrame]
	enc  audio.Encoder
	pub  *broadcast.Publisher[[]byte]
	log  *slog.Logger
}

// NewWorker constructs a Worker reading PCM from rx and encoding with enc,
// along with the SubscriberFactory listeners use to attach to its encoded
// output. depth is the encoded-bytes broadcast's per-subscriber queue
// depth.
func NewWorker(name string, cfg config.StreamConfig, rx *broadcast.Receiver[*audio.PcmFrame], enc audio.Encoder, depth int, logger *slog.Logger) (*Worker, *broadcast.SubscriberFactory[[]byte]) {
	pub, subs := broadcast.New[[]byte](depth)
	w := &Worker{
		name: name,
		cfg:  cfg,
		rx:   rx,
		enc:  enc,
		pub:  pub,
		log:  logger.With("stream", name),
	}
	return w, subs
}

// Run pulls PCM frames, encodes them, and publishes non-empty results until
// ctx is done. A Closed result from the PCM receiver is unreachable during
// normal operation -- the Source worker outlives the process -- so it is
// logged and then fatal to this worker, matching the original's
// `panic!("source stream terminated unexpectedly!")`.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("stream worker started")
	for {
		frame, err := w.rx.Recv(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.log.Info("stream worker stopped")
				return
			}
			w.log.Error("source broadcast closed unexpectedly", "stream", w.name, "error", err)
			panic("relaystream: source stream terminated unexpectedly: " + w.name)
		}

		out := w.enc.Encode(frame)
		if len(out) > 0 {
			w.pub.Publish(out)
		}
	}
}
