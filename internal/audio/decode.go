// Package audio decodes and encodes the linear (uncompressed) formats the
// DSP pipeline works with directly: WAV, FLAC, MP3 and Ogg/Vorbis in, WAV
// out. Lossy re-encoding for delivery previews goes through internal/codec
// instead, which shells out to an external encoder per track.
package audio

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"

	"github.com/budi-audio/worker-dsp/internal/audiobuf"
)

// ErrUnsupportedFormat mirrors the Rust decoder's "Unsupported audio
// format" bail for any bit depth/codec the registry doesn't recognize.
var ErrUnsupportedFormat = errors.New("audio: unsupported audio format")

// defaultSampleRate and defaultChannels are used when a stream doesn't
// report its own (matches read_audio_file's unwrap_or(44100)/unwrap_or(2)).
const (
	defaultSampleRate = 44100
	defaultChannels   = 2
)

// Decode reads r fully into a planar Buffer, choosing a decoder by path's
// file extension the way the original's Symphonia hint does.
func Decode(r io.ReadSeeker, path string) (*audiobuf.Buffer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".flac":
		return decodeFLAC(r)
	case ".mp3":
		return decodeMP3(r)
	case ".ogg", ".oga":
		return decodeVorbis(r)
	case ".wav", "":
		return decodeWAV(r)
	default:
		// Unknown extension: sniff as WAV (RIFF), same fallback the
		// original's extension-less probe effectively falls back to.
		buf, err := decodeWAV(r)
		if err != nil {
			return nil, fmt.Errorf("audio: decode %q: %w", path, ErrUnsupportedFormat)
		}
		return buf, nil
	}
}

func decodeWAV(r io.ReadSeeker) (*audiobuf.Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("audio: not a valid WAV file: %w", ErrUnsupportedFormat)
	}
	dec.ReadInfo()

	channels := int(dec.NumChans)
	if channels == 0 {
		channels = defaultChannels
	}
	sampleRate := int(dec.SampleRate)
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}
	bitDepth := int(dec.BitDepth)

	buffer := audiobuf.New(channels, sampleRate)

	pcm := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		// SourceBitDepth tells go-audio/wav what range integer samples were
		// encoded in, the same role bits_per_sample plays in hound.
		SourceBitDepth: bitDepth,
	}

	divisor := float32(divisorForBitDepth(bitDepth))
	const chunkFrames = 8192
	pcm.Data = make([]int, chunkFrames*channels)

	for {
		n, err := dec.PCMBuffer(pcm)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("audio: wav decode: %w", err)
		}
		if n == 0 {
			break
		}
		if bitDepth == 8 {
			// 8-bit WAV PCM is unsigned; centre it on zero before scaling.
			for i := range pcm.Data[:n] {
				pcm.Data[i] -= 128
			}
		}
		appendIntPlanar(buffer, pcm.Data[:n], channels, divisor)
		if err == io.EOF {
			break
		}
	}
	return buffer, nil
}

func divisorForBitDepth(bitDepth int) float64 {
	switch bitDepth {
	case 8:
		return 128.0
	case 16:
		return 32768.0
	case 24:
		return 8388608.0
	case 32:
		return 2147483648.0
	default:
		return 32768.0
	}
}

// appendIntPlanar converts interleaved integer PCM into the buffer's planar
// channels, following the same per-format divisor table as
// audio.rs::append_samples (S16 /32768, S32 /2147483648, U8 (x-128)/128;
// decodeWAV subtracts the U8 offset of 128 before calling this).
func appendIntPlanar(buffer *audiobuf.Buffer, interleaved []int, channels int, divisor float32) {
	frames := len(interleaved) / channels
	planar := make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		planar[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			planar[ch][i] = float32(interleaved[i*channels+ch]) / divisor
		}
	}
	buffer.Append(planar)
}

func decodeFLAC(r io.ReadSeeker) (*audiobuf.Buffer, error) {
	stream, err := flac.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("audio: flac parse: %w", err)
	}
	channels := int(stream.Info.NChannels)
	sampleRate := int(stream.Info.SampleRate)
	bitDepth := int(stream.Info.BitsPerSample)
	if channels == 0 {
		channels = defaultChannels
	}
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}
	divisor := float32(divisorForBitDepth(bitDepth))

	buffer := audiobuf.New(channels, sampleRate)
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("audio: flac frame: %w", err)
		}
		n := len(frame.Subframes[0].Samples)
		planar := make([][]float32, channels)
		for ch := 0; ch < channels; ch++ {
			planar[ch] = make([]float32, n)
			for i := 0; i < n && ch < len(frame.Subframes); i++ {
				planar[ch][i] = float32(frame.Subframes[ch].Samples[i]) / divisor
			}
		}
		buffer.Append(planar)
	}
	return buffer, nil
}

func decodeMP3(r io.ReadSeeker) (*audiobuf.Buffer, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("audio: mp3 decode: %w", err)
	}
	// go-mp3 always yields stereo 16-bit PCM, matching the S16 conversion
	// row of the original's format table.
	channels := 2
	sampleRate := dec.SampleRate()
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}
	buffer := audiobuf.New(channels, sampleRate)

	raw := make([]byte, 8192)
	for {
		n, err := dec.Read(raw)
		if n > 0 {
			samples := n / 2 // 16-bit little-endian samples
			frames := samples / channels
			planar := make([][]float32, channels)
			for ch := 0; ch < channels; ch++ {
				planar[ch] = make([]float32, frames)
			}
			for i := 0; i < frames; i++ {
				for ch := 0; ch < channels; ch++ {
					idx := (i*channels + ch) * 2
					v := int16(raw[idx]) | int16(raw[idx+1])<<8
					planar[ch][i] = float32(v) / 32768.0
				}
			}
			buffer.Append(planar)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("audio: mp3 read: %w", err)
		}
	}
	return buffer, nil
}

func decodeVorbis(r io.ReadSeeker) (*audiobuf.Buffer, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("audio: vorbis decode: %w", err)
	}
	channels := dec.Channels()
	if channels == 0 {
		channels = defaultChannels
	}
	sampleRate := dec.SampleRate()
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}
	buffer := audiobuf.New(channels, sampleRate)

	chunk := make([]float32, 4096*channels)
	for {
		n, err := dec.Read(chunk)
		if n > 0 {
			frames := n / channels
			planar := make([][]float32, channels)
			for ch := 0; ch < channels; ch++ {
				planar[ch] = make([]float32, frames)
			}
			for i := 0; i < frames; i++ {
				for ch := 0; ch < channels; ch++ {
					// oggvorbis already yields float32 normalized to
					// [-1, 1], so this is a passthrough like the
					// original's F32 row.
					planar[ch][i] = chunk[i*channels+ch]
				}
			}
			buffer.Append(planar)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("audio: vorbis read: %w", err)
		}
	}
	return buffer, nil
}
