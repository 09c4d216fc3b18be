// Package master implements the mastering chain: profile-driven EQ, a
// Linkwitz-Riley 3-band multiband compressor, optional saturation, and a
// look-ahead true-peak limiter coupled to LUFS make-up gain.
package master

import "strings"

// Profile selects the EQ/compression/saturation character applied.
type Profile int

const (
	Balanced Profile = iota
	Warm
	Punchy
	Custom
)

// ParseProfile matches the Rust From<&str> impl: unrecognized names fall
// back to Balanced.
func ParseProfile(s string) Profile {
	switch strings.ToLower(s) {
	case "warm":
		return Warm
	case "punchy":
		return Punchy
	case "custom":
		return Custom
	default:
		return Balanced
	}
}

// LoudnessTarget selects the limiter's integrated-loudness makeup target.
type LoudnessTarget int

const (
	Low LoudnessTarget = iota
	Medium
	High
)

// LUFSValue returns the target's integrated loudness in LUFS.
func (t LoudnessTarget) LUFSValue() float64 {
	switch t {
	case Low:
		return -14.0
	case High:
		return -8.0
	default:
		return -11.0
	}
}

// ParseLoudnessTarget matches the Rust From<&str> impl: unrecognized names
// fall back to Medium.
func ParseLoudnessTarget(s string) LoudnessTarget {
	switch strings.ToLower(s) {
	case "low":
		return Low
	case "high":
		return High
	default:
		return Medium
	}
}

// QC thresholds applied after mastering.
const (
	QCTruePeakMax        = -2.0 // dBTP
	QCLoudnessToleranceLU = 1.0
)

type eqParams struct {
	lowGain, midGain, highGain float32
	lowFreq, highFreq          float32
}

func eqParamsFor(profile Profile) eqParams {
	switch profile {
	case Warm:
		return eqParams{1.5, -0.5, -1.0, 100, 8000}
	case Punchy:
		return eqParams{2.0, 1.0, 1.5, 60, 10000}
	case Custom:
		return eqParams{0, 0, 0, 80, 12000}
	default:
		return eqParams{0, 0, 0.5, 80, 12000}
	}
}

type compressionParams struct {
	lowRatio, midRatio, highRatio          float32
	lowThreshold, midThreshold, highThreshold float32
}

func compressionParamsFor(profile Profile) compressionParams {
	switch profile {
	case Warm:
		return compressionParams{3.0, 2.0, 1.5, -16, -18, -20}
	case Punchy:
		return compressionParams{4.0, 3.0, 2.5, -14, -14, -12}
	default: // Balanced, Custom
		return compressionParams{2.0, 2.0, 2.0, -18, -16, -14}
	}
}

func saturationDrive(profile Profile) float32 {
	switch profile {
	case Warm:
		return 0.3
	case Punchy:
		return 0.5
	default:
		return 0.2
	}
}
