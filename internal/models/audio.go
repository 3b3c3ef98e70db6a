package models

import "time"

// Decoded audio is exchanged as 16-bit little endian PCM in this layout.
const (
	PCMSampleRate = 44100
	PCMChannels   = 2
)

// Samples is decoded 16-bit interleaved PCM owned by a single pipeline run.
type Samples struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Duration is the playback length of the buffer.
func (s Samples) Duration() time.Duration {
	if s.SampleRate <= 0 || s.Channels <= 0 {
		return 0
	}
	frames := len(s.Data) / (s.Channels * 2)
	return time.Duration(frames) * time.Second / time.Duration(s.SampleRate)
}

// Tags is the metadata written into a finished file.
type Tags struct {
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	AlbumTracks int
	Cover       []byte // JPEG, nil when unavailable
}

// TagsFor builds the tag set for a descriptor. The cover is attached separately.
func TagsFor(d TrackDescriptor) Tags {
	return Tags{
		Title:       d.Title,
		Artist:      d.Artist(),
		Album:       d.Album,
		TrackNumber: d.TrackNumber,
		AlbumTracks: d.AlbumTracks,
	}
}
