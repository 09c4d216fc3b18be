package master

import (
	"math"

	"github.com/budi-audio/worker-dsp/internal/audiobuf"
	"github.com/budi-audio/worker-dsp/internal/dsp"
)

// applyEQ applies the profile's low-shelf/mid-peak/high-shelf bands,
// skipping any band whose gain is within 0.01dB of flat. Custom carries
// all-zero gains, so it's a no-op the same as the original.
func applyEQ(buffer *audiobuf.Buffer, profile Profile) {
	p := eqParamsFor(profile)
	if math.Abs(float64(p.lowGain)) <= 0.01 && math.Abs(float64(p.midGain)) <= 0.01 && math.Abs(float64(p.highGain)) <= 0.01 {
		return
	}

	sampleRate := float32(buffer.SampleRate)
	for _, channel := range buffer.Samples {
		if math.Abs(float64(p.lowGain)) > 0.01 {
			f := dsp.LowShelf(sampleRate, p.lowFreq, p.lowGain)
			f.Process(channel)
		}
		if math.Abs(float64(p.midGain)) > 0.01 {
			f := dsp.PeakingEQ(sampleRate, 2000, p.midGain, 1.0)
			f.Process(channel)
		}
		if math.Abs(float64(p.highGain)) > 0.01 {
			f := dsp.HighShelf(sampleRate, p.highFreq, p.highGain)
			f.Process(channel)
		}
	}
}
