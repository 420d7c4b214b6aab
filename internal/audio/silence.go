package audio

import "time"

// SilenceSampleRate and SilenceChannels are the canonical format for the
// silence fallback (44.1 kHz stereo).
const (
	SilenceSampleRate = 44100
	SilenceChannels   = 2
)

// Silence builds one zero-valued PCM frame of the given duration at the
// canonical silence format. Built once per idle episode by the Source
// worker and shared by pointer across publishes, rather than rebuilt on
// every publish.
func Silence(d time.Duration) *PcmFrame {
	perChannel := int(d.Seconds() * float64(SilenceSampleRate))
	if perChannel < 0 {
		perChannel = 0
	}
	return &PcmFrame{
		SampleRate: SilenceSampleRate,
		Channels:   SilenceChannels,
		Samples:    make([]int16, perChannel*SilenceChannels),
	}
}
