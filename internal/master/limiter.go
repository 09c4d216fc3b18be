package master

import (
	"math"

	"github.com/budi-audio/worker-dsp/internal/audiobuf"
	"github.com/budi-audio/worker-dsp/internal/dsp"
	"github.com/budi-audio/worker-dsp/internal/loudness"
)

// applyLimiter measures current loudness, applies the make-up gain needed
// to reach target, then runs a look-ahead true-peak brick-wall limiter:
// instant-attack, 100ms-release gain-reduction smoothing, delayed output
// so the limiter can react before a peak it has already "seen".
func applyLimiter(buffer *audiobuf.Buffer, target LoudnessTarget) (finalLUFS, finalTruePeak float64) {
	targetLUFS := target.LUFSValue()
	ceilingLinear := float32(math.Pow(10, QCTruePeakMax/20))

	sampleRate := float32(buffer.SampleRate)
	lookaheadSamples := int(0.005 * sampleRate)
	if lookaheadSamples <= 0 {
		lookaheadSamples = 1
	}
	const releaseMs = 100.0
	releaseCoef := float32(math.Exp(-1.0 / (releaseMs * float64(sampleRate) / 1000)))

	currentLUFS := loudness.Measure(buffer).IntegratedLUFS
	makeupDB := targetLUFS - currentLUFS
	makeupGain := float32(math.Pow(10, makeupDB/20))

	for _, channel := range buffer.Samples {
		n := len(channel)
		if n == 0 {
			continue
		}
		lookahead := make([]float32, lookaheadSamples)
		gainReduction := float32(1.0)

		for i := 0; i < n; i++ {
			channel[i] *= makeupGain

			idx := i % lookaheadSamples
			lookahead[idx] = float32(math.Abs(float64(channel[i])))

			var peak float32
			for _, v := range lookahead {
				if v > peak {
					peak = v
				}
			}

			targetGR := float32(1.0)
			if peak > ceilingLinear {
				targetGR = ceilingLinear / peak
			}

			if targetGR < gainReduction {
				gainReduction = targetGR // instant attack
			} else {
				gainReduction = releaseCoef*gainReduction + (1-releaseCoef)*targetGR
			}

			if i >= lookaheadSamples {
				channel[i-lookaheadSamples] *= gainReduction
			}
		}

		for i := n - lookaheadSamples; i < n; i++ {
			if i >= 0 {
				channel[i] *= gainReduction
			}
		}
	}

	finalLUFS = loudness.Measure(buffer).IntegratedLUFS
	finalTruePeak = calculateTruePeak(buffer)
	return
}

func calculateTruePeak(buffer *audiobuf.Buffer) float64 {
	var maxPeak float32
	for _, ch := range buffer.Samples {
		for _, s := range dsp.Oversample4x(ch) {
			if abs := float32(math.Abs(float64(s))); abs > maxPeak {
				maxPeak = abs
			}
		}
	}
	if maxPeak > 0 {
		return 20 * math.Log10(float64(maxPeak))
	}
	return -96.0
}
