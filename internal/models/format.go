package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/spotsync/internal/shared"
)

// Format is the output codec for written tracks.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
)

const (
	MinFlacCompression     = 0
	MaxFlacCompression     = 8
	DefaultFlacCompression = 5
	DefaultMP3Bitrate      = 320
)

// ParseFormat maps a user supplied format name to a [Format].
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatMP3:
		return FormatMP3, nil
	case FormatFLAC:
		return FormatFLAC, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q (want mp3 or flac)", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension without the leading dot.
func (f Format) Extension() string {
	return string(f)
}

// FormatConfig selects the encoder and its settings for a batch.
type FormatConfig struct {
	Format          Format
	FlacCompression int // 0-8, only used for flac
	MP3Bitrate      int // kbps, only used for mp3
}

// Normalize returns a copy with out-of-range values clamped or defaulted.
func (c FormatConfig) Normalize() FormatConfig {
	if c.Format == "" {
		c.Format = FormatMP3
	}
	c.FlacCompression = max(MinFlacCompression, min(c.FlacCompression, MaxFlacCompression))
	if c.MP3Bitrate <= 0 {
		c.MP3Bitrate = DefaultMP3Bitrate
	}
	return c
}

// FileName returns the destination file name for the descriptor.
func (c FormatConfig) FileName(d TrackDescriptor) string {
	return d.FileStem() + "." + c.Format.Extension()
}

// Candidates returns every file name that marks the descriptor as already present.
func (c FormatConfig) Candidates(d TrackDescriptor) []string {
	names := []string{c.FileName(d)}
	if legacy, ok := d.LegacyFileStem(); ok {
		names = append(names, legacy+"."+c.Format.Extension())
	}
	return names
}
