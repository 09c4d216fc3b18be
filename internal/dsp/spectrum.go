package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectrumSize is the FFT window used for spectral-centroid/rolloff
// analysis, matching the original's fixed 4096-point real FFT.
const SpectrumSize = 4096

// AverageMagnitudeSpectrum windows mono in 50%-overlapping Hann frames of
// SpectrumSize samples and returns the averaged magnitude spectrum
// (SpectrumSize/2+1 bins). Returns nil if mono is shorter than one window.
func AverageMagnitudeSpectrum(mono []float32) []float64 {
	if len(mono) < SpectrumSize {
		return nil
	}
	fft := fourier.NewFFT(SpectrumSize)
	hopSize := SpectrumSize / 2
	numWindows := (len(mono)-SpectrumSize)/hopSize + 1

	avg := make([]float64, SpectrumSize/2+1)
	window := hannWindow(SpectrumSize)
	input := make([]float64, SpectrumSize)

	for w := 0; w < numWindows; w++ {
		start := w * hopSize
		for i := 0; i < SpectrumSize; i++ {
			input[i] = float64(mono[start+i]) * window[i]
		}
		spectrum := fft.Coefficients(nil, input)
		for i, c := range spectrum {
			avg[i] += math.Hypot(real(c), imag(c))
		}
	}
	for i := range avg {
		avg[i] /= float64(numWindows)
	}
	return avg
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// SpectralCentroid returns the magnitude-weighted mean frequency of a
// magnitude spectrum produced by AverageMagnitudeSpectrum.
func SpectralCentroid(magnitudes []float64, sampleRate int) (float64, bool) {
	freqRes := float64(sampleRate) / float64(SpectrumSize)
	var weighted, magSum float64
	for i, mag := range magnitudes {
		freq := float64(i) * freqRes
		weighted += freq * mag
		magSum += mag
	}
	if magSum <= 0 {
		return 0, false
	}
	return weighted / magSum, true
}

// SpectralRolloff returns the frequency below which rolloffFraction
// (e.g. 0.85) of the spectrum's squared-magnitude energy lies.
func SpectralRolloff(magnitudes []float64, sampleRate int, rolloffFraction float64) float64 {
	freqRes := float64(sampleRate) / float64(SpectrumSize)
	var total float64
	for _, mag := range magnitudes {
		total += mag * mag
	}
	threshold := total * rolloffFraction

	var cumulative float64
	bin := 0
	for i, mag := range magnitudes {
		cumulative += mag * mag
		if cumulative >= threshold {
			bin = i
			break
		}
	}
	return float64(bin) * freqRes
}
