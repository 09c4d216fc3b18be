package loudness

import (
	"math"
	"sort"

	"github.com/budi-audio/worker-dsp/internal/audiobuf"
)

// Result holds the four readings the measurement kernel and mastering
// chain's QC step both need.
type Result struct {
	IntegratedLUFS float64
	LoudnessRange  float64
	ShortTermLUFS  float64
	MomentaryLUFS  float64
}

// floorLUFS is reported whenever a reading can't be computed reliably
// (silence, or too little audio for a full gating block) — it mirrors the
// original's unwrap_or(-70.0) fallback on every ebur128 accessor.
const floorLUFS = -70.0

// Measure runs the full BS.1770 gated-loudness algorithm over buffer.
//
// ShortTermLUFS and MomentaryLUFS are the loudness of the last 3s/400ms
// window of audio, not the maximum ever observed — the same instantaneous
// reading ebur128's loudness_shortterm()/loudness_momentary() return at
// the end of a full-buffer pass. Preserved intentionally even though the
// naming elsewhere ("short_term_max") suggests a running maximum.
func Measure(buffer *audiobuf.Buffer) Result {
	blockSamples := int(float64(buffer.SampleRate) * blockMs / 1000.0)
	if blockSamples <= 0 || buffer.FrameCount() == 0 {
		return Result{IntegratedLUFS: floorLUFS, LoudnessRange: 0, ShortTermLUFS: floorLUFS, MomentaryLUFS: floorLUFS}
	}

	stage1, stage2 := kWeightingFilters(float64(buffer.SampleRate))
	channelPower := make([][]float64, buffer.Channels)
	for ch := 0; ch < buffer.Channels; ch++ {
		s1, s2 := stage1, stage2 // fresh state per channel
		channelPower[ch] = weightedPower(buffer.Samples[ch], s1, s2)
	}

	numBlocks := buffer.FrameCount() / blockSamples
	if numBlocks == 0 {
		return Result{IntegratedLUFS: floorLUFS, LoudnessRange: 0, ShortTermLUFS: floorLUFS, MomentaryLUFS: floorLUFS}
	}

	blockMeanSquare := make([]float64, numBlocks)
	for b := 0; b < numBlocks; b++ {
		start := b * blockSamples
		end := start + blockSamples
		var sum float64
		for ch := 0; ch < buffer.Channels; ch++ {
			for i := start; i < end; i++ {
				sum += channelPower[ch][i] * channelWeight
			}
		}
		blockMeanSquare[b] = sum / float64(blockSamples*buffer.Channels)
	}

	return Result{
		IntegratedLUFS: integratedLoudness(blockMeanSquare),
		LoudnessRange:  loudnessRange(blockMeanSquare),
		ShortTermLUFS:  windowLoudness(blockMeanSquare, shortTermBlocks),
		MomentaryLUFS:  windowLoudness(blockMeanSquare, momentaryBlocks),
	}
}

// windowLoudness averages the trailing `window` 100ms blocks (or all
// blocks, if fewer exist) and returns their loudness — this is the
// "instantaneous" momentary/short-term reading, not a maximum.
func windowLoudness(blocks []float64, window int) float64 {
	if len(blocks) == 0 {
		return floorLUFS
	}
	n := window
	if n > len(blocks) {
		n = len(blocks)
	}
	var sum float64
	for _, ms := range blocks[len(blocks)-n:] {
		sum += ms
	}
	l := loudnessFromMeanSquare(sum / float64(n))
	if math.IsInf(l, -1) {
		return floorLUFS
	}
	return l
}

// integratedLoudness applies the BS.1770 two-stage gate: an absolute gate
// at -70 LUFS, then a relative gate 10 LU below the absolute-gated mean,
// over 400ms blocks stepped every 100ms (75% overlap).
func integratedLoudness(blocks []float64) float64 {
	gatingBlocks := gateWindows(blocks, momentaryBlocks)
	if len(gatingBlocks) == 0 {
		return floorLUFS
	}

	var absoluteKept []float64
	for _, ms := range gatingBlocks {
		if loudnessFromMeanSquare(ms) > absoluteGateLUFS {
			absoluteKept = append(absoluteKept, ms)
		}
	}
	if len(absoluteKept) == 0 {
		return floorLUFS
	}

	relativeThreshold := loudnessFromMeanSquare(meanOf(absoluteKept)) + relativeGateLU

	var relativeKept []float64
	for _, ms := range absoluteKept {
		if loudnessFromMeanSquare(ms) > relativeThreshold {
			relativeKept = append(relativeKept, ms)
		}
	}
	if len(relativeKept) == 0 {
		return floorLUFS
	}
	return loudnessFromMeanSquare(meanOf(relativeKept))
}

// loudnessRange implements EBU Tech 3342: gate 3s blocks (stepped every
// 100ms) at -70 LUFS absolute and 20 LU below their mean, then report the
// spread between the 95th and 10th percentile of the survivors' loudness.
func loudnessRange(blocks []float64) float64 {
	gatingBlocks := gateWindows(blocks, lraBlocks)
	if len(gatingBlocks) == 0 {
		return 0
	}

	var absoluteKept []float64
	for _, ms := range gatingBlocks {
		if loudnessFromMeanSquare(ms) > absoluteGateLUFS {
			absoluteKept = append(absoluteKept, ms)
		}
	}
	if len(absoluteKept) == 0 {
		return 0
	}

	relativeThreshold := loudnessFromMeanSquare(meanOf(absoluteKept)) + lraRelativeGate

	var loudnesses []float64
	for _, ms := range absoluteKept {
		l := loudnessFromMeanSquare(ms)
		if l > relativeThreshold {
			loudnesses = append(loudnesses, l)
		}
	}
	if len(loudnesses) == 0 {
		return 0
	}
	sort.Float64s(loudnesses)
	p10 := percentile(loudnesses, 10)
	p95 := percentile(loudnesses, 95)
	return p95 - p10
}

// gateWindows builds overlapping windows of `window` consecutive 100ms
// blocks, stepped one block at a time, and returns each window's mean
// square — the gating-block granularity BS.1770 operates on.
func gateWindows(blocks []float64, window int) []float64 {
	if len(blocks) < window {
		return nil
	}
	out := make([]float64, 0, len(blocks)-window+1)
	for start := 0; start+window <= len(blocks); start++ {
		var sum float64
		for _, ms := range blocks[start : start+window] {
			sum += ms
		}
		out = append(out, sum/float64(window))
	}
	return out
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
