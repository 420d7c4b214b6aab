package source

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ivugurura/edicast/config"
	"github.com/ivugurura/edicast/internal/audio"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedDecoder yields n frames of equal size then io.EOF.
type fixedDecoder struct {
	frames []*audio.PcmFrame
	i      int
}

func (d *fixedDecoder) Read() (*audio.PcmFrame, error) {
	if d.i >= len(d.frames) {
		return nil, io.EOF
	}
	f := d.frames[d.i]
	d.i++
	return f, nil
}

func makeFrame(rate, channels, perChannel int) *audio.PcmFrame {
	return &audio.PcmFrame{
		SampleRate: rate,
		Channels:   channels,
		Samples:    make([]int16, perChannel*channels),
	}
}

func TestInactiveModePublishesSessionFrames(t *testing.T) {
	cfg := config.SourceConfig{Offline: config.OfflineInactive, BufferMS: 20}
	w, sender, subs := NewWorker("test", cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	rx, err := subs.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	decoder := &fixedDecoder{frames: []*audio.PcmFrame{
		makeFrame(44100, 2, 882), // 20ms @ 44.1kHz
		makeFrame(44100, 2, 882),
	}}

	done := make(chan error, 1)
	err = sender.Send(&Session{
		Decoder: decoder,
		Done:    func(e error) { done <- e },
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer recvCancel()
	frame, err := rx.Recv(recvCtx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if frame.Channels != 2 || frame.SampleRate != 44100 {
		t.Fatalf("unexpected frame: %+v", frame)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
}

func TestSilenceModePublishesWhileIdle(t *testing.T) {
	cfg := config.SourceConfig{Offline: config.OfflineSilence, BufferMS: 10}
	w, _, subs := NewWorker("test", cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	rx, err := subs.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer recvCancel()
	frame, err := rx.Recv(recvCtx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if frame.SampleRate != audio.SilenceSampleRate || frame.Channels != audio.SilenceChannels {
		t.Fatalf("unexpected silence frame: %+v", frame)
	}
	for _, s := range frame.Samples {
		if s != 0 {
			t.Fatalf("silence frame has non-zero sample")
		}
	}
}

func TestReserveNoSuchSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	set := NewSet(ctx, map[string]config.SourceConfig{
		"a": {Offline: config.OfflineInactive, BufferMS: 20},
	}, testLogger())

	if _, err := set.Reserve("missing"); err != ErrNoSuchSource {
		t.Fatalf("expected ErrNoSuchSource, got %v", err)
	}
}
