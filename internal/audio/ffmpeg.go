package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/aescanero/vocalmetrics/internal/acoustics"
)

// transcode converts any container ffmpeg understands to mono 16-bit WAV
// next to the input and decodes that
func (d *Decoder) transcode(ctx context.Context, path string) (*acoustics.Sound, Info, error) {
	if d.ffmpegPath == "" {
		return nil, Info{}, fmt.Errorf("%w: transcoding disabled", ErrUnsupportedFormat)
	}
	bin, err := exec.LookPath(d.ffmpegPath)
	if err != nil {
		return nil, Info{}, fmt.Errorf("%w: ffmpeg not available", ErrUnsupportedFormat)
	}

	out := path + ".pcm.wav"
	defer os.Remove(out)

	output, err := runCmd(ctx, bin,
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-vn", "-ac", "1", "-c:a", "pcm_s16le", "-f", "wav",
		out,
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Info{}, ctx.Err()
		}
		d.logger.Warn("ffmpeg failed",
			zap.String("path", path),
			zap.String("output", strings.TrimSpace(output)),
			zap.Error(err))
		return nil, Info{}, fmt.Errorf("%w: ffmpeg could not decode the recording", ErrUnsupportedFormat)
	}

	sound, info, err := decodeWAV(out)
	if err != nil {
		return nil, Info{}, fmt.Errorf("failed to decode transcoded recording: %w", err)
	}
	info.Format = FormatFFmpeg
	return sound, info, nil
}

func runCmd(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	out, err := cmd.CombinedOutput()
	return string(out), err
}
