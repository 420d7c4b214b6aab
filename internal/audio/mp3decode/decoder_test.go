package mp3decode

import "testing"

func TestBytesToFrameDecodesLittleEndianStereo(t *testing.T) {
	buf := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80}

	f := bytesToFrame(buf, 44100)

	if f.SampleRate != 44100 || f.Channels != 2 {
		t.Fatalf("unexpected frame header: %+v", f)
	}
	want := []int16{1, -1, -32768}
	if len(f.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(f.Samples), len(want))
	}
	for i, s := range want {
		if f.Samples[i] != s {
			t.Errorf("sample %d: got %d, want %d", i, f.Samples[i], s)
		}
	}
}

func TestNewDeferHeaderParse(t *testing.T) {
	d := New(nil)
	if d.dec != nil {
		t.Fatal("expected no underlying decoder before first Read")
	}
}
