package dsp

import (
	"math"
	"testing"
)

func TestAverageMagnitudeSpectrumTooShortReturnsNil(t *testing.T) {
	short := make([]float32, SpectrumSize-1)
	if got := AverageMagnitudeSpectrum(short); got != nil {
		t.Fatalf("expected nil for a buffer shorter than SpectrumSize, got %d bins", len(got))
	}
}

func TestSpectralCentroidFindsDominantTone(t *testing.T) {
	sampleRate := 44100
	tone := sineWave(2000, float32(sampleRate), SpectrumSize*3)

	mags := AverageMagnitudeSpectrum(tone)
	if mags == nil {
		t.Fatal("expected a non-nil spectrum")
	}

	centroid, ok := SpectralCentroid(mags, sampleRate)
	if !ok {
		t.Fatal("expected a valid centroid for a non-silent signal")
	}
	if math.Abs(centroid-2000) > 200 {
		t.Errorf("expected centroid near 2000Hz, got %v", centroid)
	}
}

func TestSpectralCentroidSilenceReturnsFalse(t *testing.T) {
	silence := make([]float64, SpectrumSize/2+1)
	_, ok := SpectralCentroid(silence, 44100)
	if ok {
		t.Fatal("expected ok=false for an all-zero spectrum")
	}
}

func TestSpectralRolloffIsMonotonicInFraction(t *testing.T) {
	tone := sineWave(1000, 44100, SpectrumSize*3)
	mags := AverageMagnitudeSpectrum(tone)
	if mags == nil {
		t.Fatal("expected a non-nil spectrum")
	}

	low := SpectralRolloff(mags, 44100, 0.5)
	high := SpectralRolloff(mags, 44100, 0.95)
	if high < low {
		t.Errorf("expected rolloff(0.95)=%v >= rolloff(0.5)=%v", high, low)
	}
}
