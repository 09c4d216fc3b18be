package analyze

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

func TestAnalyzeDetectsClipping(t *testing.T) {
	buf := audiobuf.New(1, 44100)
	samples := make([]float32, 1000)
	samples[500] = 0.999
	buf.Append([][]float32{samples})

	result := Analyze(buf, 24)
	if !result.HasClipping || result.ClippedSamples == 0 {
		t.Errorf("expected clipping to be detected, got HasClipping=%v count=%d", result.HasClipping, result.ClippedSamples)
	}
}

func TestAnalyzeNoClippingOnCleanSignal(t *testing.T) {
	buf := sineTestBuffer(1000, 0.3, 1, 44100, 1)
	result := Analyze(buf, 24)
	if result.HasClipping {
		t.Error("expected no clipping for a clean, low-amplitude sine wave")
	}
}

func TestAnalyzeDetectsDCOffset(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = 0.01
	}
	buf := audiobuf.New(1, 44100)
	buf.Append([][]float32{samples})

	result := Analyze(buf, 24)
	if !result.HasDCOffset || result.DCOffsetValue == nil {
		t.Fatal("expected DC offset to be detected")
	}
	if math.Abs(*result.DCOffsetValue-0.01) > 1e-6 {
		t.Errorf("expected DC offset value near 0.01, got %v", *result.DCOffsetValue)
	}
}

func TestAnalyzeMonoHasNoStereoFields(t *testing.T) {
	buf := sineTestBuffer(440, 0.2, 0.5, 44100, 1)
	result := Analyze(buf, 16)
	if result.StereoCorrelation != nil || result.StereoWidth != nil {
		t.Error("expected nil stereo fields for a mono buffer")
	}
}

func TestAnalyzeStereoCorrelationOfIdenticalChannelsIsOne(t *testing.T) {
	buf := sineTestBuffer(440, 0.2, 0.5, 44100, 2)
	result := Analyze(buf, 16)
	if result.StereoCorrelation == nil {
		t.Fatal("expected a stereo correlation value")
	}
	if math.Abs(*result.StereoCorrelation-1.0) > 1e-3 {
		t.Errorf("expected correlation near 1.0 for identical L/R channels, got %v", *result.StereoCorrelation)
	}
	if result.StereoWidth == nil || *result.StereoWidth > 1e-3 {
		t.Errorf("expected near-zero stereo width for identical L/R channels, got %v", result.StereoWidth)
	}
}

func TestAnalyzeSamplePeakMatchesKnownAmplitude(t *testing.T) {
	buf := sineTestBuffer(1000, 0.5, 1, 44100, 1)
	result := Analyze(buf, 24)
	want := 20 * math.Log10(0.5)
	if math.Abs(result.SamplePeak-want) > 0.1 {
		t.Errorf("expected sample peak near %v dBFS, got %v", want, result.SamplePeak)
	}
}
