package loudness

import (
	"math"
	"testing"

	"github.com/budi-audio/worker-dsp/internal/audiobuf"
)

func sineBuffer(freq float64, amplitude float32, seconds float64, sampleRate, channels int) *audiobuf.Buffer {
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

func TestMeasureSilenceReturnsFloor(t *testing.T) {
	buf := audiobuf.New(2, 44100)
	buf.Append([][]float32{make([]float32, 44100), make([]float32, 44100)})

	result := Measure(buf)
	if result.IntegratedLUFS != floorLUFS {
		t.Errorf("expected integrated loudness at floor (%v) for silence, got %v", floorLUFS, result.IntegratedLUFS)
	}
	if result.LoudnessRange != 0 {
		t.Errorf("expected zero loudness range for silence, got %v", result.LoudnessRange)
	}
}

func TestMeasureLouderSignalReportsHigherLUFS(t *testing.T) {
	quiet := sineBuffer(1000, 0.05, 5, 44100, 2)
	loud := sineBuffer(1000, 0.5, 5, 44100, 2)

	quietResult := Measure(quiet)
	loudResult := Measure(loud)

	if loudResult.IntegratedLUFS <= quietResult.IntegratedLUFS {
		t.Errorf("expected louder signal's integrated LUFS (%v) > quieter (%v)", loudResult.IntegratedLUFS, quietResult.IntegratedLUFS)
	}
}

func TestMeasureEmptyBufferDoesNotPanic(t *testing.T) {
	buf := audiobuf.New(2, 44100)
	result := Measure(buf)
	if result.IntegratedLUFS != floorLUFS {
		t.Errorf("expected floor LUFS for an empty buffer, got %v", result.IntegratedLUFS)
	}
}

func TestPercentileInterpolatesBetweenNeighbours(t *testing.T) {
	sorted := []float64{0, 10, 20, 30, 40}
	if got := percentile(sorted, 0); got != 0 {
		t.Errorf("percentile(0) = %v, want 0", got)
	}
	if got := percentile(sorted, 100); got != 40 {
		t.Errorf("percentile(100) = %v, want 40", got)
	}
	if got := percentile(sorted, 50); got != 20 {
		t.Errorf("percentile(50) = %v, want 20", got)
	}
}

func TestGateWindowsShorterThanWindowReturnsNil(t *testing.T) {
	blocks := make([]float64, 3)
	if got := gateWindows(blocks, 10); got != nil {
		t.Errorf("expected nil for fewer blocks than the window size, got %d windows", len(got))
	}
}

func TestWindowLoudnessUsesTrailingBlocksOnly(t *testing.T) {
	// A loud block followed by silence: the trailing short-term window
	// should read near the floor, not the peak of the earlier loud block —
	// this is what makes the reading "instantaneous" rather than a max.
	loudMS := math.Pow(10, (-10.0+0.691)/10) // mean-square for roughly -10 LUFS
	blocks := make([]float64, 40)
	for i := 0; i < 10; i++ {
		blocks[i] = loudMS
	}
	got := windowLoudness(blocks, shortTermBlocks)
	if got > -40 {
		t.Errorf("expected trailing-silence short-term reading well below -40 LUFS, got %v", got)
	}
}
