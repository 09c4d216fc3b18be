package master

import (
	"math"

	"github.com/budi-audio/worker-dsp/internal/audiobuf"
	"github.com/budi-audio/worker-dsp/internal/dsp"
)

const (
	lowMidCrossoverHz  = 200.0
	midHighCrossoverHz = 2000.0
)

// applyMultibandCompression splits each channel into three Linkwitz-Riley
// bands, compresses each independently at the profile's ratio/threshold,
// and sums the bands back together.
func applyMultibandCompression(buffer *audiobuf.Buffer, profile Profile) {
	c := compressionParamsFor(profile)
	sampleRate := float32(buffer.SampleRate)

	for chIdx, channel := range buffer.Samples {
		lowBand := append([]float32(nil), channel...)
		midBand := append([]float32(nil), channel...)
		highBand := append([]float32(nil), channel...)

		dsp.LR4Lowpass(lowBand, sampleRate, lowMidCrossoverHz)

		dsp.LR4Highpass(highBand, sampleRate, midHighCrossoverHz)

		dsp.LR4Highpass(midBand, sampleRate, lowMidCrossoverHz)
		dsp.LR4Lowpass(midBand, sampleRate, midHighCrossoverHz)

		applyCompression(lowBand, sampleRate, c.lowThreshold, c.lowRatio, 20, 200)
		applyCompression(midBand, sampleRate, c.midThreshold, c.midRatio, 10, 100)
		applyCompression(highBand, sampleRate, c.highThreshold, c.highRatio, 5, 50)

		for i := range channel {
			channel[i] = lowBand[i] + midBand[i] + highBand[i]
		}
		buffer.Samples[chIdx] = channel
	}
}

// applyCompression is a feed-forward envelope compressor: an exponential
// attack/release follower feeds a static threshold/ratio curve.
func applyCompression(samples []float32, sampleRate, thresholdDB, ratio, attackMs, releaseMs float32) {
	threshold := float32(math.Pow(10, float64(thresholdDB)/20))
	attackCoef := float32(math.Exp(-1.0 / float64(attackMs*sampleRate/1000)))
	releaseCoef := float32(math.Exp(-1.0 / float64(releaseMs*sampleRate/1000)))

	var envelope float32
	for i, sample := range samples {
		inputAbs := float32(math.Abs(float64(sample)))

		if inputAbs > envelope {
			envelope = attackCoef*envelope + (1-attackCoef)*inputAbs
		} else {
			envelope = releaseCoef*envelope + (1-releaseCoef)*inputAbs
		}

		gain := float32(1.0)
		if envelope > threshold {
			overDB := 20 * math.Log10(float64(envelope/threshold))
			reductionDB := float32(overDB) * (1 - 1/ratio)
			gain = float32(math.Pow(10, -float64(reductionDB)/20))
		}
		samples[i] = sample * gain
	}
}

// applySaturation runs tape-style tanh soft clipping, only ever invoked
// for the Warm/Punchy profiles (the Balanced/Custom `_` branch of
// saturationDrive is reachable for completeness but dead in practice,
// same as the Rust original).
func applySaturation(buffer *audiobuf.Buffer, profile Profile) {
	drive := saturationDrive(profile)
	for _, channel := range buffer.Samples {
		for i, sample := range channel {
			x := sample * (1 + drive)
			channel[i] = float32(math.Tanh(float64(x)))
		}
	}
}
