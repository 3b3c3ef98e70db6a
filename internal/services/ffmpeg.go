package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

// FFmpeg decodes and encodes audio by piping through an ffmpeg process.
type FFmpeg struct {
	path string
}

// NewFFmpeg creates a codec backed by the ffmpeg binary at path ("ffmpeg" resolves via PATH).
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path}
}

// Available reports whether the binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.path)
	return err == nil
}

// Decode reads a compressed stream and returns interleaved PCM samples.
func (f *FFmpeg) Decode(ctx context.Context, r io.Reader) (models.Samples, error) {
	var out bytes.Buffer
	if err := f.run(ctx, decodeArgs(), r, &out); err != nil {
		return models.Samples{}, fmt.Errorf("%w: %v", shared.ErrDecode, err)
	}
	if out.Len() == 0 {
		return models.Samples{}, fmt.Errorf("%w: stream produced no audio", shared.ErrDecode)
	}
	return models.Samples{Data: out.Bytes(), SampleRate: models.PCMSampleRate, Channels: models.PCMChannels}, nil
}

// Encode writes samples to w in the configured format.
func (f *FFmpeg) Encode(ctx context.Context, s models.Samples, cfg models.FormatConfig, w io.Writer) error {
	args, err := encodeArgs(s, cfg.Normalize())
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrEncode, err)
	}
	if err := f.run(ctx, args, bytes.NewReader(s.Data), w); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrEncode, err)
	}
	return nil
}

func (f *FFmpeg) run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	cmd := exec.CommandContext(ctx, f.path, args...)
	var stderr strings.Builder
	cmd.Stdin = in
	cmd.Stdout = out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func decodeArgs() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(models.PCMSampleRate),
		"-ac", strconv.Itoa(models.PCMChannels),
		"pipe:1",
	}
}

// encodeArgs expects a normalized config.
func encodeArgs(s models.Samples, cfg models.FormatConfig) ([]string, error) {
	rate, channels := s.SampleRate, s.Channels
	if rate <= 0 {
		rate = models.PCMSampleRate
	}
	if channels <= 0 {
		channels = models.PCMChannels
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
	}

	switch cfg.Format {
	case models.FormatMP3:
		args = append(args, "-c:a", "libmp3lame", "-b:a", strconv.Itoa(cfg.MP3Bitrate)+"k", "-f", "mp3")
	case models.FormatFLAC:
		args = append(args, "-c:a", "flac", "-compression_level", strconv.Itoa(cfg.FlacCompression), "-f", "flac")
	default:
		return nil, fmt.Errorf("unsupported format %q", cfg.Format)
	}

	return append(args, "pipe:1"), nil
}
