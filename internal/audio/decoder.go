package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/aescanero/vocalmetrics/internal/acoustics"
)

// ErrUnsupportedFormat is returned when a recording cannot be decoded
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format names reported in Info
const (
	FormatWAV    = "wav"
	FormatOgg    = "ogg"
	FormatFFmpeg = "ffmpeg"
)

// Info describes the decoded recording
type Info struct {
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	BitDepth   int     `json:"bit_depth,omitempty"`
	Duration   float64 `json:"duration"`
}

// Decoder reads recordings from disk
type Decoder struct {
	ffmpegPath string
	logger     *zap.Logger
}

// NewDecoder creates a new decoder. An empty ffmpegPath disables transcoding.
func NewDecoder(ffmpegPath string, logger *zap.Logger) *Decoder {
	return &Decoder{
		ffmpegPath: ffmpegPath,
		logger:     logger,
	}
}

// Decode reads the recording at path as mono samples
func (d *Decoder) Decode(ctx context.Context, path string) (*acoustics.Sound, Info, error) {
	header, err := readHeader(path)
	if err != nil {
		return nil, Info{}, err
	}

	switch {
	case isWAV(header):
		sound, info, err := decodeWAV(path)
		if err == nil {
			return sound, info, nil
		}
		if !errors.Is(err, errNeedsTranscode) {
			return nil, Info{}, err
		}
		d.logger.Debug("WAV needs transcoding", zap.String("path", path), zap.Error(err))

	case isOgg(header):
		sound, info, err := decodeOgg(path)
		if err == nil {
			return sound, info, nil
		}
		d.logger.Debug("Ogg stream is not Vorbis, transcoding", zap.String("path", path), zap.Error(err))
	}

	return d.transcode(ctx, path)
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read recording header: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedFormat)
	}
	return header[:n], nil
}

func isWAV(header []byte) bool {
	return len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE"))
}

func isOgg(header []byte) bool {
	return len(header) >= 4 && bytes.Equal(header[0:4], []byte("OggS"))
}
