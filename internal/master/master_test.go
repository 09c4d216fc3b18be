package master

import (
	"math"
	"testing"

	"github.com/budi-audio/worker-dsp/internal/audiobuf"
)

func sineTestBuffer(freq float64, amplitude float32, seconds float64, sampleRate, channels int) *audiobuf.Buffer {
	frames := int(float64(sampleRate) * seconds)
	buf := audiobuf.New(channels, sampleRate)
	samples := make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		samples[ch] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			samples[ch][i] = amplitude * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		}
	}
	buf.Append(samples)
	return buf
}

func TestApplyBringsLoudnessTowardTarget(t *testing.T) {
	buf := sineTestBuffer(1000, 0.05, 3, 44100, 2)
	result := Apply(buf, Balanced, Medium)

	if math.Abs(result.FinalLUFS-Medium.LUFSValue()) > 2.0 {
		t.Errorf("expected final LUFS near target %v, got %v", Medium.LUFSValue(), result.FinalLUFS)
	}
}

func TestApplyNeverExceedsTruePeakCeilingByMuch(t *testing.T) {
	// A signal driven hot enough that the limiter must engage.
	buf := sineTestBuffer(1000, 0.95, 2, 44100, 2)
	result := Apply(buf, Balanced, High)

	if result.FinalTruePeak > QCTruePeakMax+0.5 {
		t.Errorf("expected limiter to hold true peak near the QC ceiling, got %v", result.FinalTruePeak)
	}
}

func TestApplyPassesQCReflectsTruePeakCeiling(t *testing.T) {
	buf := sineTestBuffer(1000, 0.3, 2, 44100, 2)
	result := Apply(buf, Balanced, Medium)

	want := result.FinalTruePeak <= QCTruePeakMax
	if result.PassesQC != want {
		t.Errorf("PassesQC = %v, want %v (finalTruePeak=%v, ceiling=%v)", result.PassesQC, want, result.FinalTruePeak, QCTruePeakMax)
	}
}

func TestApplyWarmProfileAppliesSaturation(t *testing.T) {
	warmBuf := sineTestBuffer(200, 0.3, 1, 44100, 1)
	Apply(warmBuf, Warm, Medium)

	balancedBuf := sineTestBuffer(200, 0.3, 1, 44100, 1)
	Apply(balancedBuf, Balanced, Medium)

	// Both should have run without panicking and produced finite samples;
	// saturation's tanh soft-clip means Warm's waveform should differ from
	// Balanced's at the sample level for an identical input.
	identical := true
	for i := range warmBuf.Samples[0] {
		if warmBuf.Samples[0][i] != balancedBuf.Samples[0][i] {
			identical = false
			break
		}
	}
	if identical {
		t.Error("expected Warm profile's saturation stage to produce a different waveform than Balanced")
	}
}
