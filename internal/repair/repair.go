// Package repair implements the six independent fix modules a "fix" job can
// request, applied in the order the caller lists them: normalize,
// clip_repair, de_ess, noise_reduction, dc_offset, silence_trim. Each is a
// direct port of the Rust worker's corresponding function.
package repair

import (
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/budi-audio/worker-dsp/internal/audiobuf"
)

// Change records a fix module that produced an effective modification —
// modules that found nothing to change report no Change, same as the
// original's Option<FixChange> return.
type Change struct {
	Module      string
	Description string
}

// Apply runs the requested modules against buffer in the given order.
// Unknown module names are logged and skipped, never treated as an error.
func Apply(buffer *audiobuf.Buffer, modules []string, logger *log.Logger) []Change {
	var changes []Change
	for _, module := range modules {
		var change *Change
		switch module {
		case "normalize":
			change = applyNormalize(buffer)
		case "clip_repair":
			change = applyClipRepair(buffer)
		case "de_ess":
			change = applyDeEss(buffer)
		case "noise_reduction":
			change = applyNoiseReduction(buffer)
		case "dc_offset":
			change = applyDCOffsetRemoval(buffer)
		case "silence_trim":
			change = applySilenceTrim(buffer)
		default:
			if logger != nil {
				logger.Warn("unknown fix module", "module", module)
			}
			continue
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}
	return changes
}

// applyNormalize scales the buffer so its peak sits at -1dBFS, skipping
// near-silent input and gains within 1% of unity.
func applyNormalize(buffer *audiobuf.Buffer) *Change {
	const targetDB = -1.0
	targetLinear := float32(math.Pow(10, targetDB/20))

	var maxSample float32
	for _, ch := range buffer.Samples {
		for _, s := range ch {
			if abs := float32(math.Abs(float64(s))); abs > maxSample {
				maxSample = abs
			}
		}
	}
	if maxSample < 0.0001 {
		return nil
	}

	gain := targetLinear / maxSample
	if math.Abs(float64(gain)-1.0) < 0.01 {
		return nil
	}

	for _, ch := range buffer.Samples {
		for i := range ch {
			ch[i] *= gain
		}
	}

	gainDB := 20 * math.Log10(float64(gain))
	return &Change{
		Module:      "normalize",
		Description: fmt.Sprintf("Applied %.1fdB gain to normalize to -1dB peak", gainDB),
	}
}

// applyClipRepair finds interior runs of |x|>=0.99 (a run touching a
// channel's start or end is left alone — there's nothing to interpolate
// from) and smoothstep-interpolates across them.
func applyClipRepair(buffer *audiobuf.Buffer) *Change {
	const clipThreshold = 0.99
	repaired := 0

	for _, channel := range buffer.Samples {
		n := len(channel)
		if n < 3 {
			continue
		}
		i := 0
		for i < n {
			if math.Abs(float64(channel[i])) >= clipThreshold {
				start := i
				for i < n && math.Abs(float64(channel[i])) >= clipThreshold {
					i++
				}
				end := i

				if start > 0 && end < n {
					startVal := channel[start-1]
					endVal := channel[end]
					regionLen := end - start

					for j := 0; j < regionLen; j++ {
						t := float32(j+1) / float32(regionLen+1)
						smoothT := t * t * (3 - 2*t)
						channel[start+j] = startVal + (endVal-startVal)*smoothT
						repaired++
					}
				}
			}
			i++
		}
	}

	if repaired == 0 {
		return nil
	}
	return &Change{
		Module:      "clip_repair",
		Description: fmt.Sprintf("Repaired %d clipped samples using interpolation", repaired),
	}
}

// applyDeEss tracks sibilant energy through a one-pole high-pass and an
// asymmetric envelope follower, attenuating the filtered high-frequency
// content when the envelope crosses the detection threshold.
func applyDeEss(buffer *audiobuf.Buffer) *Change {
	const sibilantLow = 4000.0
	const threshold = 0.3
	const ratio = 0.5

	sampleRate := float32(buffer.SampleRate)
	rc := float32(1.0 / (2 * math.Pi * sibilantLow))
	dt := 1.0 / sampleRate
	alpha := dt / (rc + dt)

	var totalReduction float64
	reductionCount := 0

	for _, channel := range buffer.Samples {
		n := len(channel)
		if n < 2 {
			continue
		}

		var prevHP, envelope float32
		attack := 0.001 * sampleRate  // 1ms
		release := 0.050 * sampleRate // 50ms
		attackCoef := 1.0 / attack
		releaseCoef := 1.0 / release

		for i := 0; i < n; i++ {
			var prevSample float32
			if i > 0 {
				prevSample = channel[i-1]
			}
			hp := alpha * (prevHP + channel[i] - prevSample)
			prevHP = hp

			hpAbs := float32(math.Abs(float64(hp)))
			if hpAbs > envelope {
				envelope += (hpAbs - envelope) * attackCoef
			} else {
				envelope += (hpAbs - envelope) * releaseCoef
			}

			if envelope > threshold {
				gainReduction := 1.0 - (1.0-ratio)*(envelope-threshold)/envelope
				gain := gainReduction
				if gain < 0.3 {
					gain = 0.3
				}
				channel[i] = channel[i]*(1-alpha) + hp*gain*alpha
				totalReduction += 1.0 - float64(gain)
				reductionCount++
			}
		}
	}

	if reductionCount == 0 {
		return nil
	}
	avgReduction := totalReduction / float64(reductionCount) * 100
	return &Change{
		Module: "de_ess",
		Description: fmt.Sprintf(
			"Applied de-essing with %.1f%% average reduction on %d samples",
			avgReduction, reductionCount,
		),
	}
}

// applyNoiseReduction is a gate with hold: when the envelope stays below
// gateThreshold for longer than the release hold, a gentle, envelope-
// proportional attenuation is applied rather than a hard mute.
func applyNoiseReduction(buffer *audiobuf.Buffer) *Change {
	const noiseFloorDB = -60.0
	noiseFloor := float32(math.Pow(10, noiseFloorDB/20))
	gateThreshold := noiseFloor * 2.0

	sampleRate := float32(buffer.SampleRate)
	attackSamples := int(0.005 * sampleRate)
	releaseSamples := int(0.050 * sampleRate)
	if attackSamples <= 0 {
		attackSamples = 1
	}
	if releaseSamples <= 0 {
		releaseSamples = 1
	}

	gatedSamples := 0

	for _, channel := range buffer.Samples {
		var envelope float32
		gateOpen := false
		holdCounter := 0

		for i := range channel {
			absSample := float32(math.Abs(float64(channel[i])))
			if absSample > envelope {
				envelope += (absSample - envelope) / float32(attackSamples)
			} else {
				envelope += (absSample - envelope) / float32(releaseSamples)
			}

			if envelope > gateThreshold {
				gateOpen = true
				holdCounter = releaseSamples
			} else if holdCounter > 0 {
				holdCounter--
			} else {
				gateOpen = false
			}

			if !gateOpen {
				ratio := envelope / gateThreshold
				if ratio > 1 {
					ratio = 1
				}
				attenuation := 0.1 + 0.9*ratio
				channel[i] *= attenuation
				gatedSamples++
			}
		}
	}

	if gatedSamples == 0 {
		return nil
	}
	total := buffer.FrameCount() * buffer.Channels
	percentage := float64(gatedSamples) / float64(total) * 100
	return &Change{
		Module:      "noise_reduction",
		Description: fmt.Sprintf("Applied noise gating to %.1f%% of samples", percentage),
	}
}

// applyDCOffsetRemoval subtracts each channel's mean when it exceeds a
// 0.0001 threshold, and reports the average offset removed.
func applyDCOffsetRemoval(buffer *audiobuf.Buffer) *Change {
	var offsets []float32

	for _, channel := range buffer.Samples {
		if len(channel) == 0 {
			continue
		}
		var sum float64
		for _, s := range channel {
			sum += float64(s)
		}
		offset := float32(sum / float64(len(channel)))

		if math.Abs(float64(offset)) > 0.0001 {
			for i := range channel {
				channel[i] -= offset
			}
			offsets = append(offsets, offset)
		}
	}

	if len(offsets) == 0 {
		return nil
	}
	var sum float32
	for _, o := range offsets {
		sum += o
	}
	avg := sum / float32(len(offsets))
	return &Change{
		Module: "dc_offset",
		Description: fmt.Sprintf(
			"Removed DC offset of %.6f from %d channel(s)", avg, len(offsets),
		),
	}
}

// applySilenceTrim trims leading/trailing silence below -60dBFS, keeping
// minSilenceMs of padding at each end.
func applySilenceTrim(buffer *audiobuf.Buffer) *Change {
	const silenceThreshold = 0.001
	const minSilenceMs = 100
	minSilenceSamples := int(minSilenceMs * float64(buffer.SampleRate) / 1000.0)

	frameCount := buffer.FrameCount()
	if frameCount == 0 {
		return nil
	}

	frameMax := func(i int) float32 {
		var m float32
		for _, ch := range buffer.Samples {
			if abs := float32(math.Abs(float64(ch[i]))); abs > m {
				m = abs
			}
		}
		return m
	}

	startFrame := 0
	for i := 0; i < frameCount; i++ {
		if frameMax(i) > silenceThreshold {
			startFrame = saturatingSub(i, minSilenceSamples)
			break
		}
	}

	endFrame := frameCount
	for i := frameCount - 1; i >= 0; i-- {
		if frameMax(i) > silenceThreshold {
			endFrame = min(i+minSilenceSamples, frameCount)
			break
		}
	}

	trimmedStart := startFrame
	trimmedEnd := frameCount - endFrame
	if trimmedStart == 0 && trimmedEnd == 0 {
		return nil
	}

	for i, channel := range buffer.Samples {
		buffer.Samples[i] = append([]float32(nil), channel[startFrame:endFrame]...)
	}

	startMs := float64(trimmedStart) * 1000 / float64(buffer.SampleRate)
	endMs := float64(trimmedEnd) * 1000 / float64(buffer.SampleRate)
	return &Change{
		Module:      "silence_trim",
		Description: fmt.Sprintf("Trimmed %.0fms from start and %.0fms from end", startMs, endMs),
	}
}

func saturatingSub(a, b int) int {
	if b > a {
		return 0
	}
	return a - b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
