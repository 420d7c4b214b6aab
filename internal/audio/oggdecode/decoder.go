// Package oggdecode adapts github.com/xlab/vorbis-go/decoder to the
// audio.Decoder contract.
//
// Grounded directly on
// _examples/other_examples/d2dafd44_xlab-vorbis-go__decoder-decoder.go.go:
// decoder.New(r, samplesPerChannel) parses the Ogg/Vorbis identification,
// comment, and setup headers eagerly (returning an error if they are
// invalid -- the control endpoint handles this by declining the
// reservation), then Decode() must be run (canonically in its own
// goroutine) to drive the stream and feed SamplesOut(); New starts that
// goroutine so callers only ever see the audio.Decoder contract.
package oggdecode

import (
	"io"
	"sync"

	"github.com/xlab/vorbis-go/decoder"

	"github.com/ivugurura/edicast/internal/audio"
)

// samplesPerChannel controls the block size vorbis-go delivers on
// SamplesOut; kept modest so Source worker buffering stays responsive.
const samplesPerChannel = 1024

// Decoder decodes an Ogg Vorbis byte stream to PCM frames.
type Decoder struct {
	dec *decoder.Decoder

	mu      sync.Mutex
	decErr  error
	samples <-chan [][]float32
}

// New constructs a Decoder reading from r, eagerly parsing the Vorbis
// headers. Returns an error if the stream does not begin with a valid
// Vorbis header (the construction-failure case the control endpoint must
// handle without committing the rendezvous reservation). Decode() is
// started in its own goroutine immediately; without it nothing ever feeds
// SamplesOut() and the first Read would block forever.
func New(r io.Reader) (*Decoder, error) {
	dec, err := decoder.New(r, samplesPerChannel)
	if err != nil {
		return nil, err
	}
	d := &Decoder{dec: dec, samples: dec.SamplesOut()}
	dec.SetErrorHandler(d.recordError)
	go dec.Decode()
	return d, nil
}

func (d *Decoder) recordError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.decErr == nil {
		d.decErr = err
	}
}

// Read implements audio.Decoder.
func (d *Decoder) Read() (*audio.PcmFrame, error) {
	block, ok := <-d.samples
	if !ok {
		d.mu.Lock()
		err := d.decErr
		d.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	if len(block) == 0 {
		return nil, audio.ErrSkippedData
	}

	info := d.dec.Info()
	channels := len(block)
	perChannel := len(block[0])

	samples := make([]int16, perChannel*channels)
	for c := 0; c < channels; c++ {
		ch := block[c]
		for i := 0; i < perChannel && i < len(ch); i++ {
			samples[i*channels+c] = floatToInt16(ch[i])
		}
	}

	return &audio.PcmFrame{
		SampleRate: int(info.SampleRate),
		Channels:   channels,
		Samples:    samples,
	}, nil
}

// Close stops the decode goroutine and releases the underlying decoder.
// The Source worker calls this once the broadcaster session ends; the
// error result (always nil) makes Decoder an io.Closer.
func (d *Decoder) Close() error {
	d.dec.Close()
	return nil
}

func floatToInt16(v float32) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}
