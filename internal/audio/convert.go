package audio

import "encoding/binary"

// DecodePCM16 converts little-endian 16-bit PCM bytes into float32 samples in
// [-1, 1]. A trailing odd byte is ignored.
func DecodePCM16(buf []byte) []float32 {
	n := len(buf) / 2
	if n == 0 {
		return nil
	}
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		u := binary.LittleEndian.Uint16(buf[2*i:])
		samples[i] = float32(int16(u)) / 32768.0
	}
	return samples
}

// Downmix collapses interleaved multi-channel audio to mono by averaging the
// channels of each frame. Mono input is returned as-is. Trailing partial
// frames are dropped.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	if frames == 0 {
		return nil
	}
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Resample converts mono samples from one rate to another using linear
// interpolation. Output capacity is sized from the conversion ratio plus one
// frame of slack so variable input buffer sizes never truncate.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return samples
	}
	if len(samples) == 0 {
		return nil
	}
	ratio := float64(toRate) / float64(fromRate)
	frames := int(float64(len(samples))*ratio) + 1
	out := make([]float32, 0, frames)
	for i := 0; i < frames; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			if idx < len(samples) {
				out = append(out, samples[idx])
			}
			break
		}
		frac := float32(pos - float64(idx))
		out = append(out, samples[idx]+(samples[idx+1]-samples[idx])*frac)
	}
	return out
}

// Converter turns raw device buffers in a fixed input format into canonical
// mono samples at the target rate. It is stateless per buffer; hardware may
// deliver buffers of any size.
type Converter struct {
	InputRate     int
	InputChannels int
	TargetRate    int
}

// Convert decodes, downmixes, and resamples one raw PCM16 buffer. A nil or
// zero-frame result means the buffer carried no usable frames and should be
// dropped silently.
func (c Converter) Convert(buf []byte) []float32 {
	samples := DecodePCM16(buf)
	if len(samples) == 0 {
		return nil
	}
	mono := Downmix(samples, c.InputChannels)
	if len(mono) == 0 {
		return nil
	}
	return Resample(mono, c.InputRate, c.TargetRate)
}
