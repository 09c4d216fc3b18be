// Package loudness implements ITU-R BS.1770 / EBU R128 loudness metering:
// K-weighting, gated integrated loudness, loudness range, and the
// momentary/short-term instantaneous readings the mastering chain and
// measurement kernel both depend on.
package loudness

import (
	"math"

	"github.com/budi-audio/worker-dsp/internal/dsp"
)

// kWeightingFilters returns the two cascaded biquad stages of the BS.1770
// K-weighting pre-filter (a high-shelf stage followed by a high-pass
// stage), with coefficients derived for the given sample rate the same
// way the reference implementation derives them at 48kHz.
func kWeightingFilters(sampleRate float64) (stage1, stage2 dsp.Biquad) {
	// Stage 1: high shelf, boosts above ~1.7kHz.
	f0 := 1681.9744509555319
	g := 3.99984385397343
	q := 0.7071752369554196
	k := math.Tan(math.Pi * f0 / sampleRate)
	vh := math.Pow(10, g/20)
	vb := math.Pow(vh, 0.4996667741545416)
	a0 := 1 + k/q + k*k
	stage1 = dsp.Biquad{
		B0: float32((vh + vb*k/q + k*k) / a0),
		B1: float32(2 * (k*k - vh) / a0),
		B2: float32((vh - vb*k/q + k*k) / a0),
		A1: float32(2 * (k*k - 1) / a0),
		A2: float32((1 - k/q + k*k) / a0),
	}

	// Stage 2: high pass, removes sub-bass energy.
	f0 = 38.13547087613982
	q = 0.5003270373238773
	k = math.Tan(math.Pi * f0 / sampleRate)
	a0 = 1 + k/q + k*k
	stage2 = dsp.Biquad{
		B0: 1,
		B1: -2,
		B2: 1,
		A1: float32(2 * (k*k - 1) / a0),
		A2: float32((1 - k/q + k*k) / a0),
	}
	return
}

// weightedPower runs a channel through the K-weighting cascade and returns
// the squared, weighted samples (channel power per sample).
func weightedPower(samples []float32, stage1, stage2 dsp.Biquad) []float64 {
	weighted := append([]float32(nil), samples...)
	stage1.Process(weighted)
	stage2.Process(weighted)

	power := make([]float64, len(weighted))
	for i, v := range weighted {
		power[i] = float64(v) * float64(v)
	}
	return power
}

// channelWeight is BS.1770's per-channel weighting; budi only ever meters
// mono or dual-mono/stereo content, so every channel carries 1.0 (L/R/mono
// all unweighted — the +1.41 surround weighting never applies here).
const channelWeight = 1.0

const (
	blockMs          = 100
	momentaryBlocks  = 4  // 400 ms
	shortTermBlocks  = 30 // 3000 ms
	lraBlocks        = 30 // 3000 ms gating window for LRA
	absoluteGateLUFS = -70.0
	relativeGateLU   = -10.0
	lraRelativeGate  = -20.0
)

func loudnessFromMeanSquare(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return math.Inf(-1)
	}
	return -0.691 + 10*math.Log10(meanSquare)
}
