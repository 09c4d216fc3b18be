package repair

import (
	"math"
	"testing"

	"github.com/budi-audio/worker-dsp/internal/audiobuf"
)

func monoBuffer(samples []float32, sampleRate int) *audiobuf.Buffer {
	buf := audiobuf.New(1, sampleRate)
	buf.Append([][]float32{samples})
	return buf
}

func TestApplyUnknownModuleIsSkippedNotFatal(t *testing.T) {
	buf := monoBuffer([]float32{0.1, 0.2, 0.3}, 44100)
	changes := Apply(buf, []string{"not_a_real_module"}, nil)
	if len(changes) != 0 {
		t.Fatalf("expected no changes for an unknown module, got %v", changes)
	}
}

func TestNormalizeScalesPeakToTargetAndSkipsNearUnity(t *testing.T) {
	buf := monoBuffer([]float32{0.1, -0.2, 0.3, -0.1}, 44100)
	change := applyNormalize(buf)
	if change == nil {
		t.Fatal("expected normalize to report a change for a quiet signal")
	}

	var peak float32
	for _, s := range buf.Samples[0] {
		if abs := float32(math.Abs(float64(s))); abs > peak {
			peak = abs
		}
	}
	targetLinear := float32(math.Pow(10, -1.0/20))
	if math.Abs(float64(peak-targetLinear)) > 1e-4 {
		t.Errorf("expected peak near %v after normalize, got %v", targetLinear, peak)
	}

	already := monoBuffer([]float32{targetLinear, -targetLinear}, 44100)
	if c := applyNormalize(already); c != nil {
		t.Errorf("expected no change for a signal already at target peak, got %+v", c)
	}
}

func TestNormalizeSkipsNearSilence(t *testing.T) {
	buf := monoBuffer([]float32{0.00001, -0.00002}, 44100)
	if c := applyNormalize(buf); c != nil {
		t.Errorf("expected no change for near-silent input, got %+v", c)
	}
}

func TestClipRepairInterpolatesInteriorClipRun(t *testing.T) {
	samples := []float32{0.1, 0.99, 0.99, 0.99, 0.2}
	buf := monoBuffer(samples, 44100)
	change := applyClipRepair(buf)
	if change == nil {
		t.Fatal("expected clip_repair to report a change")
	}
	if buf.Samples[0][1] >= 0.99 || buf.Samples[0][2] >= 0.99 || buf.Samples[0][3] >= 0.99 {
		t.Errorf("expected interior clipped run to be interpolated below threshold, got %v", buf.Samples[0])
	}
}

func TestClipRepairLeavesEdgeRunsAlone(t *testing.T) {
	samples := []float32{0.99, 0.99, 0.1, 0.2}
	buf := monoBuffer(samples, 44100)
	applyClipRepair(buf)
	if buf.Samples[0][0] != 0.99 {
		t.Errorf("expected a clip run touching the start to be left alone, got %v", buf.Samples[0][0])
	}
}

func TestDCOffsetRemovalSubtractsMean(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = 0.01 // constant DC offset well above the 0.0001 threshold
	}
	buf := monoBuffer(samples, 44100)
	change := applyDCOffsetRemoval(buf)
	if change == nil {
		t.Fatal("expected dc_offset to report a change")
	}
	for _, s := range buf.Samples[0] {
		if math.Abs(float64(s)) > 1e-6 {
			t.Fatalf("expected DC offset to be removed, got residual %v", s)
		}
	}
}

func TestDCOffsetRemovalSkipsBelowThreshold(t *testing.T) {
	samples := []float32{0.00001, -0.00001, 0.00002}
	buf := monoBuffer(samples, 44100)
	if c := applyDCOffsetRemoval(buf); c != nil {
		t.Errorf("expected no change below the DC offset threshold, got %+v", c)
	}
}

func TestSilenceTrimRemovesLeadingAndTrailingSilence(t *testing.T) {
	sampleRate := 1000
	silentFrames := 500 // 500ms of silence, more than the 100ms padding kept
	samples := make([]float32, 0, silentFrames*2+10)
	samples = append(samples, make([]float32, silentFrames)...)
	for i := 0; i < 10; i++ {
		samples = append(samples, 0.5)
	}
	samples = append(samples, make([]float32, silentFrames)...)

	buf := monoBuffer(samples, sampleRate)
	originalLen := len(samples)
	change := applySilenceTrim(buf)
	if change == nil {
		t.Fatal("expected silence_trim to report a change")
	}
	if len(buf.Samples[0]) >= originalLen {
		t.Errorf("expected buffer to shrink after trimming, got %d vs original %d", len(buf.Samples[0]), originalLen)
	}
}

func TestSilenceTrimNoOpOnAllLoudSignal(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = 0.5
	}
	buf := monoBuffer(samples, 44100)
	if c := applySilenceTrim(buf); c != nil {
		t.Errorf("expected no trim when there is no silence to remove, got %+v", c)
	}
}

func TestNoiseReductionAttenuatesQuietPassages(t *testing.T) {
	sampleRate := 44100
	samples := make([]float32, sampleRate/10)
	for i := range samples {
		samples[i] = 0.0005 // below gate threshold (noiseFloor*2 ~= 0.002)
	}
	buf := monoBuffer(samples, sampleRate)
	change := applyNoiseReduction(buf)
	if change == nil {
		t.Fatal("expected noise_reduction to report a change for a quiet passage")
	}
}

func TestApplyRunsModulesInRequestedOrder(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = 0.01
	}
	buf := monoBuffer(samples, 44100)
	changes := Apply(buf, []string{"dc_offset", "normalize"}, nil)

	if len(changes) == 0 {
		t.Fatal("expected at least one reported change")
	}
	if changes[0].Module != "dc_offset" {
		t.Errorf("expected dc_offset to run first per the requested order, got %s first", changes[0].Module)
	}
}
