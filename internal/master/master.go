package master

import "github.com/budi-audio/worker-dsp/internal/audiobuf"

// Result carries the loudness/peak measurements taken after the full
// chain has run, plus whether the output clears the QC true-peak ceiling.
type Result struct {
	FinalLUFS     float64
	FinalTruePeak float64
	PassesQC      bool
}

// Apply runs the full mastering chain in order: EQ, multiband compression,
// optional saturation (Warm/Punchy only), then the look-ahead limiter.
func Apply(buffer *audiobuf.Buffer, profile Profile, target LoudnessTarget) Result {
	applyEQ(buffer, profile)
	applyMultibandCompression(buffer, profile)

	if profile == Warm || profile == Punchy {
		applySaturation(buffer, profile)
	}

	finalLUFS, finalTruePeak := applyLimiter(buffer, target)

	return Result{
		FinalLUFS:     finalLUFS,
		FinalTruePeak: finalTruePeak,
		PassesQC:      finalTruePeak <= QCTruePeakMax,
	}
}
