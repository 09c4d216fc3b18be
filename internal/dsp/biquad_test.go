package dsp

import (
	"math"
	"testing"
)

func impulse(n int) []float32 {
	s := make([]float32, n)
	s[0] = 1
	return s
}

func rmsOf(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func sineWave(freq, sampleRate float32, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(math.Sin(2 * math.Pi * float64(freq) * float64(i) / float64(sampleRate)))
	}
	return s
}

func TestBiquadZeroGainIsIdentity(t *testing.T) {
	tests := []struct {
		name   string
		filter Biquad
	}{
		{"low shelf", LowShelf(44100, 100, 0)},
		{"high shelf", HighShelf(44100, 8000, 0)},
		{"peaking eq", PeakingEQ(44100, 1000, 0, 1.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.filter
			samples := sineWave(440, 44100, 512)
			original := make([]float32, len(samples))
			copy(original, samples)

			f.Process(samples)

			for i := range samples {
				if math.Abs(float64(samples[i]-original[i])) > 1e-3 {
					t.Fatalf("0dB filter altered sample %d: got %v want ~%v", i, samples[i], original[i])
				}
			}
		})
	}
}

func TestLowShelfBoostsLowFrequencyEnergy(t *testing.T) {
	low := sineWave(60, 44100, 4096)
	boosted := LowShelf(44100, 200, 6.0)
	boosted.Process(low)

	flat := sineWave(60, 44100, 4096)

	if rmsOf(low) <= rmsOf(flat) {
		t.Fatalf("expected boosted low-shelf RMS (%v) > flat RMS (%v)", rmsOf(low), rmsOf(flat))
	}
}

func TestHighShelfAttenuatesHighFrequency(t *testing.T) {
	high := sineWave(10000, 44100, 4096)
	cut := HighShelf(44100, 8000, -6.0)
	cut.Process(high)

	flat := sineWave(10000, 44100, 4096)
	if rmsOf(high) >= rmsOf(flat) {
		t.Fatalf("expected cut high-shelf RMS (%v) < flat RMS (%v)", rmsOf(high), rmsOf(flat))
	}
}

func TestLR4LowpassAttenuatesAboveCrossover(t *testing.T) {
	high := sineWave(8000, 44100, 4096)
	LR4Lowpass(high, 44100, 200)

	flat := sineWave(8000, 44100, 4096)
	if rmsOf(high) >= 0.1*rmsOf(flat) {
		t.Fatalf("expected strong attenuation above crossover, got rms %v vs flat %v", rmsOf(high), rmsOf(flat))
	}
}

func TestLR4HighpassAttenuatesBelowCrossover(t *testing.T) {
	low := sineWave(50, 44100, 4096)
	LR4Highpass(low, 44100, 2000)

	flat := sineWave(50, 44100, 4096)
	if rmsOf(low) >= 0.1*rmsOf(flat) {
		t.Fatalf("expected strong attenuation below crossover, got rms %v vs flat %v", rmsOf(low), rmsOf(flat))
	}
}

func TestBiquadResetClearsState(t *testing.T) {
	f := LowpassButterworth(44100, 1000)
	f.Process(impulse(16))
	if f.x1 == 0 && f.y1 == 0 {
		t.Fatal("expected filter state to be non-zero after processing an impulse")
	}
	f.Reset()
	if f.x1 != 0 || f.x2 != 0 || f.y1 != 0 || f.y2 != 0 {
		t.Fatal("expected Reset to zero all filter state")
	}
}
