package dsp

import "gonum.org/v1/gonum/dsp/fourier"

// TruePeakWindow is the per-channel chunk size the oversampler works on,
// matching the original's rubato::FftFixedIn window of 1024 frames.
const TruePeakWindow = 1024

// Oversample4x upsamples samples by 4x using zero-stuffing in the
// frequency domain (FFT, zero-pad the spectrum, inverse FFT), processed in
// TruePeakWindow-sized, zero-tail-padded chunks the way the original's
// FftFixedIn resampler consumes fixed-size input blocks. It exists purely
// to find inter-sample peaks for true-peak metering, not for audible
// resampling, so phase/ringing artifacts at chunk boundaries are
// acceptable.
func Oversample4x(samples []float32) []float32 {
	const factor = 4
	n := len(samples)
	if n == 0 {
		return nil
	}

	out := make([]float32, 0, n*factor)
	fftIn := fourier.NewFFT(TruePeakWindow)
	fftOut := fourier.NewFFT(TruePeakWindow * factor)

	for start := 0; start < n; start += TruePeakWindow {
		end := start + TruePeakWindow
		chunk := make([]float64, TruePeakWindow)
		if end > n {
			end = n
		}
		for i := start; i < end; i++ {
			chunk[i-start] = float64(samples[i])
		}

		spectrum := fftIn.Coefficients(nil, chunk)

		upSpectrum := make([]complex128, TruePeakWindow*factor/2+1)
		copy(upSpectrum, spectrum)

		upsampled := fftOut.Sequence(nil, upSpectrum)
		scale := 1.0 / float64(TruePeakWindow)
		for _, v := range upsampled {
			out = append(out, float32(v*scale))
		}
	}
	return out
}
