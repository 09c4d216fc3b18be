// Package codec bridges the linear mastering pipeline to lossy delivery
// formats by shelling out to an external encoder binary, the way spec §6
// models the codec step: the DSP worker never links a lossy encoder
// in-process, it drives one as a subprocess and measures the round trip.
package codec

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/budi-audio/worker-dsp/internal/audio"
	"github.com/budi-audio/worker-dsp/internal/audiobuf"
	"github.com/budi-audio/worker-dsp/internal/dsp"
)

// Request names one "<format>-<bitrateKbps>" preview to produce, e.g.
// "aac-256" or "opus-128".
type Request struct {
	Format     string
	BitrateKbp int
}

// Result is what gets reported back per requested codec.
type Result struct {
	Format        string
	BitrateKbps   int
	ArtifactScore float64 // 0-100, higher means more audible artifacts
	ClippingRisk  bool
	OutputPath    string
}

// ParseRequest splits a "<format>-<bitrate>" spec, e.g. "mp3-320".
func ParseRequest(spec string) (Request, error) {
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return Request{}, fmt.Errorf("codec: malformed spec %q", spec)
	}
	bitrate, err := strconv.Atoi(parts[1])
	if err != nil {
		return Request{}, fmt.Errorf("codec: malformed bitrate in %q: %w", spec, err)
	}
	return Request{Format: strings.ToLower(parts[0]), BitrateKbp: bitrate}, nil
}

func extensionFor(format string) (string, error) {
	switch format {
	case "aac":
		return ".m4a", nil
	case "mp3":
		return ".mp3", nil
	case "opus":
		return ".ogg", nil
	default:
		return "", fmt.Errorf("codec: unsupported format %q", format)
	}
}

func encodeArgsFor(format string, bitrateKbps int) ([]string, error) {
	kbps := fmt.Sprintf("%dk", bitrateKbps)
	switch format {
	case "aac":
		return []string{"-c:a", "aac", "-b:a", kbps}, nil
	case "mp3":
		return []string{"-c:a", "libmp3lame", "-b:a", kbps}, nil
	case "opus":
		return []string{"-c:a", "libopus", "-b:a", kbps}, nil
	default:
		return nil, fmt.Errorf("codec: unsupported format %q", format)
	}
}

// Bridge drives the external encoder binary for each requested preview.
type Bridge struct {
	// BinaryName is the encoder executable invoked as a subprocess, e.g.
	// "ffmpeg". Configurable because the spec only fixes the CLI contract
	// (-i/-y plus codec args), not the binary name.
	BinaryName string
	ScratchDir string
}

// NewBridge returns a Bridge with defaults matching spec §6.
func NewBridge(binaryName, scratchDir string) *Bridge {
	if binaryName == "" {
		binaryName = "ffmpeg"
	}
	return &Bridge{BinaryName: binaryName, ScratchDir: scratchDir}
}

// Encode runs one codec preview: encode the input WAV, decode the result
// back to linear PCM, then score the round trip's fidelity against the
// original buffer.
func (b *Bridge) Encode(ctx context.Context, inputPath string, original *audiobuf.Buffer, req Request) (Result, error) {
	ext, err := extensionFor(req.Format)
	if err != nil {
		return Result{}, err
	}
	encodeArgs, err := encodeArgsFor(req.Format, req.BitrateKbp)
	if err != nil {
		return Result{}, err
	}

	outputPath := filepath.Join(b.ScratchDir, fmt.Sprintf("preview-%s-%d%s", req.Format, req.BitrateKbp, ext))
	args := append([]string{"-i", inputPath}, encodeArgs...)
	args = append(args, "-y", outputPath)
	if err := b.run(ctx, args); err != nil {
		return Result{}, fmt.Errorf("codec: encode %s-%d: %w", req.Format, req.BitrateKbp, err)
	}

	decodedPath := filepath.Join(b.ScratchDir, fmt.Sprintf("roundtrip-%s-%d.wav", req.Format, req.BitrateKbp))
	decodeArgs := []string{"-i", outputPath, "-c:a", "pcm_s24le", "-y", decodedPath}
	if err := b.run(ctx, decodeArgs); err != nil {
		return Result{}, fmt.Errorf("codec: decode round trip %s-%d: %w", req.Format, req.BitrateKbp, err)
	}

	decodedFile, err := os.Open(decodedPath)
	if err != nil {
		return Result{}, fmt.Errorf("codec: open round-trip output: %w", err)
	}
	defer decodedFile.Close()

	roundTripped, err := audio.Decode(decodedFile, decodedPath)
	if err != nil {
		return Result{}, fmt.Errorf("codec: decode round-trip output: %w", err)
	}

	score := artifactScore(original, roundTripped)
	risk := clippingRisk(roundTripped)

	return Result{
		Format:        req.Format,
		BitrateKbps:   req.BitrateKbp,
		ArtifactScore: score,
		ClippingRisk:  risk,
		OutputPath:    outputPath,
	}, nil
}

func (b *Bridge) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, b.BinaryName, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", b.BinaryName, strings.Join(args, " "), err, out)
	}
	return nil
}

// artifactScore reports a 0-100 perceptual-proxy derived from the SNR
// between the original and the lossy-then-decoded round trip, aligned
// per-channel up to their shorter length: higher means more audible
// artifacts, per spec §4.5's `clamp((60 - snr) / 60 * 100, 0, 100)`.
func artifactScore(original, roundTripped *audiobuf.Buffer) float64 {
	var signalPower, errorPower float64
	channels := original.Channels
	if roundTripped.Channels < channels {
		channels = roundTripped.Channels
	}

	for ch := 0; ch < channels; ch++ {
		a := original.Samples[ch]
		b := roundTripped.Samples[ch]
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		for i := 0; i < n; i++ {
			signalPower += float64(a[i]) * float64(a[i])
			diff := float64(a[i]) - float64(b[i])
			errorPower += diff * diff
		}
	}

	var snr float64
	switch {
	case errorPower <= 0:
		snr = 120.0 // effectively lossless round trip
	case signalPower <= 0:
		snr = 0
	default:
		snr = 10 * math.Log10(signalPower/errorPower)
	}

	score := (60 - snr) / 60 * 100
	return math.Min(100, math.Max(0, score))
}

// clippingRisk flags a round trip whose true peak, measured via the same
// 4x-oversampled estimator analysis uses, exceeds -0.5 dBTP — lossy
// encoders can overshoot on transients even when the source never did.
func clippingRisk(roundTripped *audiobuf.Buffer) bool {
	const riskCeilingDBTP = -0.5
	var maxPeak float32
	for _, ch := range roundTripped.Samples {
		for _, s := range dsp.Oversample4x(ch) {
			if abs := float32(math.Abs(float64(s))); abs > maxPeak {
				maxPeak = abs
			}
		}
	}
	if maxPeak <= 0 {
		return false
	}
	truePeakDBTP := 20 * math.Log10(float64(maxPeak))
	return truePeakDBTP > riskCeilingDBTP
}
