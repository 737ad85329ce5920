package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/aescanero/vocalmetrics/internal/acoustics"
)

func decodeOgg(path string) (*acoustics.Sound, Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to open Ogg file: %w", err)
	}
	defer f.Close()

	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to create Ogg decoder: %w", err)
	}

	channels := reader.Channels()
	var samples []float64
	buffer := make([]float32, 16384)
	for {
		n, err := reader.Read(buffer)
		for _, v := range buffer[:n] {
			samples = append(samples, float64(v))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Info{}, fmt.Errorf("failed to read Ogg data: %w", err)
		}
	}

	sound := acoustics.NewSound(acoustics.MixToMono(samples, channels), float64(reader.SampleRate()))
	return sound, Info{
		Format:     FormatOgg,
		SampleRate: reader.SampleRate(),
		Channels:   channels,
		Duration:   sound.Duration(),
	}, nil
}
