package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDecodePCM16(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:], uint16(int16(0)))
	binary.LittleEndian.PutUint16(buf[2:], uint16(int16(16384)))
	minSample := int16(-32768)
	binary.LittleEndian.PutUint16(buf[4:], uint16(minSample))

	got := DecodePCM16(buf)
	want := []float32{0, 0.5, -1}
	if len(got) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("sample %d = %g, want %g", i, got[i], want[i])
		}
	}

	if DecodePCM16(nil) != nil {
		t.Fatalf("expected nil for empty input")
	}
	if DecodePCM16([]byte{0x01}) != nil {
		t.Fatalf("expected nil for a single trailing byte")
	}
}

func TestDownmixStereo(t *testing.T) {
	t.Parallel()

	in := []float32{1, 0, 0.5, 0.5, -1, 1}
	got := Downmix(in, 2)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("downmixed to %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestDownmixMonoPassthrough(t *testing.T) {
	t.Parallel()

	in := []float32{0.1, 0.2}
	if got := Downmix(in, 1); &got[0] != &in[0] {
		t.Fatalf("mono input should pass through without copy")
	}
}

func TestResampleHalvesRate(t *testing.T) {
	t.Parallel()

	in := make([]float32, 480) // 10ms at 48kHz
	for i := range in {
		in[i] = float32(i)
	}
	out := Resample(in, 48000, 16000)
	// 10ms at 16kHz is 160 frames; allow the one-frame slack.
	if len(out) < 160 || len(out) > 161 {
		t.Fatalf("resampled to %d frames, want ~160", len(out))
	}
	// Linear interpolation over a linear ramp reproduces the ramp.
	for i := 0; i < 160; i++ {
		want := float32(i) * 3
		if math.Abs(float64(out[i]-want)) > 1e-3 {
			t.Fatalf("frame %d = %g, want %g", i, out[i], want)
		}
	}
}

func TestResampleSameRatePassthrough(t *testing.T) {
	t.Parallel()

	in := []float32{0.25, 0.75}
	if got := Resample(in, 16000, 16000); &got[0] != &in[0] {
		t.Fatalf("same-rate input should pass through without copy")
	}
}

func TestConverterDropsEmptyBuffers(t *testing.T) {
	t.Parallel()

	conv := Converter{InputRate: 48000, InputChannels: 2, TargetRate: 16000}
	if got := conv.Convert(nil); got != nil {
		t.Fatalf("expected nil for empty buffer, got %v", got)
	}
	// One stereo sample is half a frame; conversion yields zero frames and
	// the chunk is dropped rather than treated as an error.
	if got := conv.Convert([]byte{0x00, 0x00}); got != nil {
		t.Fatalf("expected nil for a partial frame, got %v", got)
	}
}

func TestConverterEndToEnd(t *testing.T) {
	t.Parallel()

	// 20ms of stereo 48kHz silence: 960 frames * 2 channels * 2 bytes.
	buf := make([]byte, 960*2*2)
	conv := Converter{InputRate: 48000, InputChannels: 2, TargetRate: 16000}
	out := conv.Convert(buf)
	if len(out) < 320 || len(out) > 321 {
		t.Fatalf("converted to %d frames, want ~320 (20ms at 16kHz)", len(out))
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("frame %d = %g, want 0", i, v)
		}
	}
}
