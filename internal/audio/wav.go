package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/aescanero/vocalmetrics/internal/acoustics"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag
const wavFormatPCM = 1

var errNeedsTranscode = errors.New("wav encoding is not integer PCM")

func decodeWAV(path string) (*acoustics.Sound, Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, Info{}, fmt.Errorf("%w: invalid WAV file", ErrUnsupportedFormat)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, Info{}, fmt.Errorf("%w: format tag %d", errNeedsTranscode, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to read PCM buffer: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, Info{}, fmt.Errorf("%w: missing WAV format", ErrUnsupportedFormat)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	samples, err := pcmToFloat(buf.Data, bitDepth)
	if err != nil {
		return nil, Info{}, err
	}

	channels := buf.Format.NumChannels
	sound := acoustics.NewSound(acoustics.MixToMono(samples, channels), float64(buf.Format.SampleRate))
	return sound, Info{
		Format:     FormatWAV,
		SampleRate: buf.Format.SampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
		Duration:   sound.Duration(),
	}, nil
}

// pcmToFloat scales integer samples to [-1, 1). 8-bit WAV is unsigned.
func pcmToFloat(data []int, bitDepth int) ([]float64, error) {
	if bitDepth < 8 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedFormat, bitDepth)
	}

	scale := 1 / float64(int64(1)<<(bitDepth-1))
	out := make([]float64, len(data))
	for i, v := range data {
		if bitDepth == 8 {
			v -= 128
		}
		out[i] = float64(v) * scale
	}
	return out, nil
}
