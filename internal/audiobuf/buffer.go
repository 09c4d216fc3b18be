// Package audiobuf holds the planar audio buffer shared across every DSP
// stage: decoders fill one, the repair and mastering chains mutate one in
// place, and encoders drain one.
package audiobuf

// Buffer is planar (one []float32 per channel, not interleaved) so that
// filters and meters can operate on a channel slice directly without a
// de-interleave pass.
type Buffer struct {
	Samples    [][]float32
	SampleRate int
	Channels   int
}

// New returns an empty buffer with one (empty) slice per channel.
func New(channels, sampleRate int) *Buffer {
	samples := make([][]float32, channels)
	for i := range samples {
		samples[i] = []float32{}
	}
	return &Buffer{Samples: samples, SampleRate: sampleRate, Channels: channels}
}

// FrameCount returns the number of sample frames, i.e. the length of any
// one channel (channels are always kept the same length).
func (b *Buffer) FrameCount() int {
	if len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// DurationSecs returns the buffer's length in seconds.
func (b *Buffer) DurationSecs() float64 {
	if b.FrameCount() == 0 || b.SampleRate == 0 {
		return 0
	}
	return float64(b.FrameCount()) / float64(b.SampleRate)
}

// Append adds decoded planar samples to the buffer, one slice per channel.
// Channels beyond len(b.Samples) are ignored; missing channels are left
// untouched (this only matters for malformed decode output).
func (b *Buffer) Append(channels [][]float32) {
	for ch := 0; ch < b.Channels && ch < len(channels); ch++ {
		b.Samples[ch] = append(b.Samples[ch], channels[ch]...)
	}
}

// Clone returns a deep copy of the buffer, for a stage that needs to
// compare before/after state.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{SampleRate: b.SampleRate, Channels: b.Channels}
	out.Samples = make([][]float32, len(b.Samples))
	for i, ch := range b.Samples {
		out.Samples[i] = append([]float32(nil), ch...)
	}
	return out
}
