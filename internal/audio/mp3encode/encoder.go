// Package mp3encode adapts github.com/viert/lame (a cgo binding to
// libmp3lame, the same codec library the original Rust implementation
// binds via its `lame` crate -- see original_source/src/audio/encode.rs)
// to the audio.Encoder contract.
package mp3encode

import (
	"github.com/viert/lame"

	"github.com/ivugurura/edicast/internal/audio"
	"github.com/ivugurura/edicast/config"
)

// Encoder encodes PCM frames to MP3 via libmp3lame. Exactly one Stream
// worker owns an Encoder instance; the underlying encoder is stateful and
// sequential.
type Encoder struct {
	enc *lame.Lame
}

// New constructs an Encoder from the stream's MP3 codec configuration. A
// construction failure here is a configuration error the process cannot
// recover from, matching a fail-fast construction pattern for codec
// instances (e.g. original_source/src/audio/encode.rs's
// `Lame::new().expect(...)`).
func New(cfg config.Mp3Codec) *Encoder {
	enc, err := lame.New()
	if err != nil {
		panic("mp3encode: lame.New: " + err.Error())
	}
	enc.SetInSamplerate(audio.SilenceSampleRate)
	enc.SetOutSamplerate(audio.SilenceSampleRate)
	enc.SetNumChannels(2)
	enc.SetBitrate(cfg.BitrateKbps)
	enc.SetQuality(cfg.Quality)
	enc.InitParams()
	return &Encoder{enc: enc}
}

// Encode implements audio.Encoder. A mono frame is duplicated to stereo
// before encoding; channels beyond the first two are discarded. The output
// buffer is sized for the worst-case MP3 expansion (num_samples*5/4 + 7200
// bytes), the standard lame.h-derived formula.
func (e *Encoder) Encode(f *audio.PcmFrame) []byte {
	left, right := toStereoPlanar(f)

	out := make([]byte, (len(left)*5)/4+7200)
	n, err := e.enc.Encode(left, right, out)
	if err != nil {
		// A misconfigured encoder is a startup-time bug, not a recoverable
		// per-frame condition, so it is fatal to the stream worker.
		panic("mp3encode: Encode: " + err.Error())
	}
	return out[:n]
}

// Describe returns a short human-readable codec description for logging.
func (e *Encoder) Describe() string {
	return "mp3"
}

// MimeType returns the MIME type listeners should be served with.
func MimeType() string {
	return "audio/mpeg"
}

func toStereoPlanar(f *audio.PcmFrame) (left, right []int16) {
	n := f.SampleCount()
	left = make([]int16, n)
	right = make([]int16, n)

	switch f.Channels {
	case 1:
		for i := 0; i < n; i++ {
			left[i] = f.Samples[i]
			right[i] = f.Samples[i]
		}
	default:
		// first two channels; extras discarded.
		for i := 0; i < n; i++ {
			base := i * f.Channels
			left[i] = f.Samples[base]
			right[i] = f.Samples[base+1]
		}
	}
	return left, right
}
