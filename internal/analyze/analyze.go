// Package analyze implements the measurement kernel: loudness, peaks,
// clipping/DC-offset detection, spectral characteristics and stereo
// imaging, ported from the worker's Rust analysis pass.
package analyze

import (
	"math"

	"github.com/budi-audio/worker-dsp/internal/audiobuf"
	"github.com/budi-audio/worker-dsp/internal/dsp"
	"github.com/budi-audio/worker-dsp/internal/loudness"
)

// Result mirrors the analysis payload reported back over the analysis
// webhook — see internal/webhook.
type Result struct {
	IntegratedLUFS    float64  `json:"integratedLufs"`
	LoudnessRange     float64  `json:"loudnessRange"`
	ShortTermMax      float64  `json:"shortTermMax"`
	MomentaryMax      float64  `json:"momentaryMax"`
	SamplePeak        float64  `json:"samplePeak"`
	TruePeak          float64  `json:"truePeak"`
	SpectralCentroid  *float64 `json:"spectralCentroid"`
	SpectralRolloff   *float64 `json:"spectralRolloff"`
	StereoCorrelation *float64 `json:"stereoCorrelation"`
	StereoWidth       *float64 `json:"stereoWidth"`
	HasClipping       bool     `json:"hasClipping"`
	HasDCOffset       bool     `json:"hasDcOffset"`
	DCOffsetValue     *float64 `json:"dcOffsetValue"`
	ClippedSamples    int      `json:"clippedSamples"`
	SampleRate        int      `json:"sampleRate"`
	BitDepth          int      `json:"bitDepth"`
	Channels          int      `json:"channels"`
	DurationSecs      float64  `json:"durationSecs"`
}

// clipThreshold flags near-clipping a touch below true digital ceiling,
// matching the original's "slightly below 1.0 to catch near-clipping".
const clipThreshold = 0.99

// dcOffsetThreshold is a 0.1% mean-sample threshold.
const dcOffsetThreshold = 0.001

// Analyze runs the full measurement kernel over buffer.
func Analyze(buffer *audiobuf.Buffer, bitDepth int) Result {
	lr := loudness.Measure(buffer)

	samplePeak := calculateSamplePeak(buffer)
	truePeak := calculateTruePeak(buffer)

	hasClipping, clippedSamples := detectClipping(buffer)
	hasDCOffset, dcOffset := detectDCOffset(buffer)
	centroid, rolloff := analyzeSpectrum(buffer)

	var correlation, width *float64
	if buffer.Channels >= 2 {
		correlation, width = analyzeStereo(buffer)
	}

	return Result{
		IntegratedLUFS:    lr.IntegratedLUFS,
		LoudnessRange:     lr.LoudnessRange,
		ShortTermMax:      lr.ShortTermLUFS,
		MomentaryMax:      lr.MomentaryLUFS,
		SamplePeak:        samplePeak,
		TruePeak:          truePeak,
		SpectralCentroid:  centroid,
		SpectralRolloff:   rolloff,
		StereoCorrelation: correlation,
		StereoWidth:       width,
		HasClipping:       hasClipping,
		HasDCOffset:       hasDCOffset,
		DCOffsetValue:     dcOffset,
		ClippedSamples:    clippedSamples,
		SampleRate:        buffer.SampleRate,
		BitDepth:          bitDepth,
		Channels:          buffer.Channels,
		DurationSecs:      buffer.DurationSecs(),
	}
}

func calculateSamplePeak(buffer *audiobuf.Buffer) float64 {
	var maxSample float32
	for _, ch := range buffer.Samples {
		for _, s := range ch {
			if abs := float32(math.Abs(float64(s))); abs > maxSample {
				maxSample = abs
			}
		}
	}
	if maxSample > 0 {
		return 20 * math.Log10(float64(maxSample))
	}
	return -96.0
}

// calculateTruePeak 4x-oversamples every channel and reports the highest
// inter-sample peak found, in dBTP.
func calculateTruePeak(buffer *audiobuf.Buffer) float64 {
	var maxPeak float32
	for _, ch := range buffer.Samples {
		oversampled := dsp.Oversample4x(ch)
		for _, s := range oversampled {
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

func detectClipping(buffer *audiobuf.Buffer) (bool, int) {
	count := 0
	for _, ch := range buffer.Samples {
		for _, s := range ch {
			if math.Abs(float64(s)) >= clipThreshold {
				count++
			}
		}
	}
	return count > 0, count
}

func detectDCOffset(buffer *audiobuf.Buffer) (bool, *float64) {
	if len(buffer.Samples) == 0 || len(buffer.Samples[0]) == 0 {
		return false, nil
	}
	var sum float64
	var total int
	for _, ch := range buffer.Samples {
		for _, s := range ch {
			sum += float64(s)
		}
		total += len(ch)
	}
	offset := sum / float64(total)
	return math.Abs(offset) > dcOffsetThreshold, &offset
}

func analyzeSpectrum(buffer *audiobuf.Buffer) (*float64, *float64) {
	if buffer.FrameCount() == 0 {
		return nil, nil
	}
	frames := buffer.FrameCount()
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for _, ch := range buffer.Samples {
			sum += ch[i]
		}
		mono[i] = sum / float32(buffer.Channels)
	}

	magnitudes := dsp.AverageMagnitudeSpectrum(mono)
	if magnitudes == nil {
		return nil, nil
	}

	var centroidPtr, rolloffPtr *float64
	if centroid, ok := dsp.SpectralCentroid(magnitudes, buffer.SampleRate); ok {
		centroidPtr = &centroid
	}
	rolloff := dsp.SpectralRolloff(magnitudes, buffer.SampleRate, 0.85)
	rolloffPtr = &rolloff

	return centroidPtr, rolloffPtr
}

// analyzeStereo assumes channel 0 is left and channel 1 is right with no
// channel-layout lookup — preserved from the original, which makes the
// same assumption.
func analyzeStereo(buffer *audiobuf.Buffer) (*float64, *float64) {
	left := buffer.Samples[0]
	right := buffer.Samples[1]
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	if n == 0 {
		return nil, nil
	}

	var sumL, sumR, sumLL, sumRR, sumLR float64
	for i := 0; i < n; i++ {
		l := float64(left[i])
		r := float64(right[i])
		sumL += l
		sumR += r
		sumLL += l * l
		sumRR += r * r
		sumLR += l * r
	}

	nf := float64(n)
	meanL := sumL / nf
	meanR := sumR / nf
	varL := sumLL/nf - meanL*meanL
	varR := sumRR/nf - meanR*meanR
	covLR := sumLR/nf - meanL*meanR

	var correlation float64
	if varL > 0 && varR > 0 {
		correlation = covLR / (math.Sqrt(varL) * math.Sqrt(varR))
	}

	var midEnergy, sideEnergy float64
	for i := 0; i < n; i++ {
		l := float64(left[i])
		r := float64(right[i])
		mid := (l + r) / 2
		side := (l - r) / 2
		midEnergy += mid * mid
		sideEnergy += side * side
	}

	var width float64
	if midEnergy+sideEnergy > 0 {
		width = sideEnergy / (midEnergy + sideEnergy)
	}

	return &correlation, &width
}
