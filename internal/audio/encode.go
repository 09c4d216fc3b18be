package audio

import (
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/budi-audio/worker-dsp/internal/audiobuf"
)

// EncodeWAV writes buffer to w at the given bit depth (16, 24 or 32),
// matching write_wav_file's per-depth scaling exactly: 16-bit samples are
// scaled by 32767, 24- and 32-bit by their signed max (8388607 /
// 2147483647), each after clamping to [-1, 1] and rounded to the nearest
// integer.
func EncodeWAV(w io.WriteSeeker, buffer *audiobuf.Buffer, bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("audio: unsupported bit depth: %d", bitDepth)
	}

	enc := wav.NewEncoder(w, buffer.SampleRate, bitDepth, buffer.Channels, 1)

	frameCount := buffer.FrameCount()
	scale := scaleForBitDepth(bitDepth)
	interleaved := make([]int, frameCount*buffer.Channels)
	for i := 0; i < frameCount; i++ {
		for ch := 0; ch < buffer.Channels; ch++ {
			s := clamp(buffer.Samples[ch][i], -1.0, 1.0)
			interleaved[i*buffer.Channels+ch] = int(math.Round(float64(s) * scale))
		}
	}

	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: buffer.Channels, SampleRate: buffer.SampleRate},
		Data:           interleaved,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(pcm); err != nil {
		return fmt.Errorf("audio: wav write: %w", err)
	}
	return enc.Close()
}

func scaleForBitDepth(bitDepth int) float64 {
	switch bitDepth {
	case 16:
		return 32767.0
	case 24:
		return 8388607.0
	case 32:
		return 2147483647.0
	default:
		return 32767.0
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
