package relaystream

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ivugurura/edicast/config"
	"github.com/ivugurura/edicast/internal/audio"
	"github.com/ivugurura/edicast/internal/broadcast"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type passthroughEncoder struct{}

func (passthroughEncoder) Encode(f *audio.PcmFrame) []byte {
	out := make([]byte, len(f.Samples)*2)
	for i, s := range f.Samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

func TestWorkerEncodesAndPublishesFrames(t *testing.T) {
	pcmPub, pcmSubs := broadcast.New[*audio.PcmFrame](4)
	rx, err := pcmSubs.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	w, subs := NewWorker("main", config.StreamConfig{}, rx, passthroughEncoder{}, 4, testLogger())
	out, err := subs.Subscribe()
	if err != nil {
		t.Fatalf("subscribe output: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	pcmPub.Publish(&audio.PcmFrame{SampleRate: 44100, Channels: 2, Samples: []int16{1, 2, 3, 4}})

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer recvCancel()
	chunk, err := out.Recv(recvCtx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if len(chunk) != 8 {
		t.Fatalf("expected 8 encoded bytes, got %d", len(chunk))
	}
}

func TestWorkerSkipsEmptyEncodedOutput(t *testing.T) {
	pcmPub, pcmSubs := broadcast.New[*audio.PcmFrame](4)
	rx, err := pcmSubs.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	w, subs := NewWorker("main", config.StreamConfig{}, rx, &bufferingEncoder{}, 4, testLogger())
	out, err := subs.Subscribe()
	if err != nil {
		t.Fatalf("subscribe output: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	pcmPub.Publish(&audio.PcmFrame{SampleRate: 44100, Channels: 1, Samples: []int16{1, 2}})
	pcmPub.Publish(&audio.PcmFrame{SampleRate: 44100, Channels: 1, Samples: []int16{3, 4}})

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer recvCancel()
	chunk, err := out.Recv(recvCtx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if len(chunk) == 0 {
		t.Fatal("expected non-empty encoded output on the second frame")
	}
}

// bufferingEncoder withholds output on the first call, matching codecs that
// need more than one frame's worth of samples before emitting a block.
type bufferingEncoder struct {
	calls int
}

func (b *bufferingEncoder) Encode(f *audio.PcmFrame) []byte {
	b.calls++
	if b.calls == 1 {
		return nil
	}
	return []byte{0xff}
}

func TestWorkerPanicsWhenSourceClosesUnexpectedly(t *testing.T) {
	pcmPub, pcmSubs := broadcast.New[*audio.PcmFrame](4)
	rx, err := pcmSubs.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	w, _ := NewWorker("main", config.StreamConfig{}, rx, passthroughEncoder{}, 4, testLogger())

	panicked := make(chan any, 1)
	go func() {
		defer func() { panicked <- recover() }()
		w.Run(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	pcmPub.Close()

	select {
	case p := <-panicked:
		if p == nil {
			t.Fatal("expected Run to panic on unexpected broadcast closure")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after unexpected close")
	}
}
