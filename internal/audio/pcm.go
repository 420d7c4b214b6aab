// Package audio defines the PCM frame type and the Decoder/Encoder
// contracts the Source and Stream workers are built against, along with the
// exact-rational pacing accumulator used to wall-clock-schedule PCM
// delivery.
//
// PcmFrame generalizes original_source/src/audio.rs's PcmData (there
// hardcoded to stereo left/right slices) to an interleaved, arbitrary
// channel-count representation.
package audio

import (
	"errors"
	"time"
)

// ErrSkippedData indicates the decoder consumed input that did not yield a
// PCM frame (e.g. metadata, or a transient corruption it recovered from).
// The caller should ignore it and call Read again.
var ErrSkippedData = errors.New("audio: skipped data")

// ErrMalformedFrame indicates a single frame was corrupt but the stream can
// continue; treated identically to ErrSkippedData by Source sessions.
var ErrMalformedFrame = errors.New("audio: malformed frame")

// PcmFrame is an immutable batch of interleaved 16-bit signed samples.
type PcmFrame struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// SampleCount returns the number of samples per channel.
func (f *PcmFrame) SampleCount() int {
	if f.Channels == 0 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Duration returns the playback duration of the frame.
func (f *PcmFrame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	secs := float64(f.SampleCount()) / float64(f.SampleRate)
	return time.Duration(secs * float64(time.Second))
}

// Valid reports whether the frame's sample count is consistent with its
// channel count and sample rate is set.
func (f *PcmFrame) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && len(f.Samples)%f.Channels == 0
}

// Decoder is the pull-based contract every codec decode adapter implements.
// Read yields one PCM frame per call, or a terminal (io.EOF) or skippable
// (ErrSkippedData / ErrMalformedFrame) error; any other error is an I/O
// failure that ends the session.
type Decoder interface {
	Read() (*PcmFrame, error)
}

// Encoder is the push-based contract every codec encode adapter implements.
// Encode accepts one PCM frame and returns an encoded byte buffer, which may
// be empty if the codec is still buffering internally.
type Encoder interface {
	Encode(f *PcmFrame) []byte
}
