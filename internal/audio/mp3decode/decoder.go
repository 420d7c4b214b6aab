// Package mp3decode adapts github.com/hajimehoshi/go-mp3 to the
// audio.Decoder contract: pull one PCM frame per Read call from an MP3
// byte stream.
//
// Styled on the lazy-init pattern used by codec adapters across the pack
// (construction is cheap; the first Read discovers sample rate/channel
// count and surfaces construction-time failures as the first read error
// rather than at New, since go-mp3 itself defers header parsing until the
// first Read of its underlying reader).
package mp3decode

import (
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/ivugurura/edicast/internal/audio"
)

// readChunkSamples is the number of per-channel samples pulled per
// underlying read; large enough to amortize syscall overhead, small enough
// to keep Source worker buffering responsive.
const readChunkSamples = 1152 // one standard MPEG-1 Layer III frame

// bytesPerFrame is fixed: go-mp3 always decodes to 16-bit stereo PCM.
const bytesPerFrame = readChunkSamples * 2 /* channels */ * 2 /* bytes/sample */

// Decoder decodes an MP3 byte stream to PCM frames.
type Decoder struct {
	r      io.Reader
	dec    *mp3.Decoder
	buf    []byte
	eofHit bool
}

// New constructs a Decoder reading from r. Header parsing happens lazily on
// the first Read, matching go-mp3's own lazy decode-on-read behavior.
func New(r io.Reader) *Decoder {
	return &Decoder{r: r, buf: make([]byte, bytesPerFrame)}
}

// Read implements audio.Decoder.
func (d *Decoder) Read() (*audio.PcmFrame, error) {
	if d.eofHit {
		return nil, io.EOF
	}

	if d.dec == nil {
		dec, err := mp3.NewDecoder(d.r)
		if err != nil {
			// go-mp3 could not find a valid stream header; the stream may
			// recover once more bytes arrive (e.g. ID3 padding at the
			// front), so this is a skippable condition, not terminal.
			return nil, audio.ErrSkippedData
		}
		d.dec = dec
	}

	n, err := io.ReadFull(d.dec, d.buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	if err != nil {
		// short final read: remember to report EOF on the next call, but
		// still hand back any whole samples decoded this time.
		d.eofHit = true
	}

	n -= n % 4 // whole interleaved stereo samples only
	if n == 0 {
		return nil, io.EOF
	}
	return bytesToFrame(d.buf[:n], d.dec.SampleRate()), nil
}

func bytesToFrame(buf []byte, sampleRate int) *audio.PcmFrame {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		lo := buf[i*2]
		hi := buf[i*2+1]
		samples[i] = int16(uint16(lo) | uint16(hi)<<8)
	}
	return &audio.PcmFrame{
		SampleRate: sampleRate,
		Channels:   2,
		Samples:    samples,
	}
}
