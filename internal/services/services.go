// package services defines the external collaborators used by the download engine
//
// Stream proxy, Spotify Web API, ffmpeg, tag writers, cover art, terminal prompt
package services

import (
	"context"
	"io"

	"github.com/desertthunder/spotsync/internal/models"
)

// Streamer fetches raw audio streams for tracks and episodes.
type Streamer interface {
	// Authenticate establishes a session with the streaming backend.
	// Returns an error wrapping [shared.ErrAuthFailed] when credentials are rejected.
	Authenticate(ctx context.Context) error

	// FetchStream opens the audio stream for a track.
	// Remote not found, region or subscription restrictions wrap [shared.ErrTrackUnavailable].
	FetchStream(ctx context.Context, d models.TrackDescriptor) (io.ReadCloser, error)

	// Name returns the name of the backend
	Name() string
}

// Metadata looks up descriptors for identifiers and expands containers to their members.
type Metadata interface {
	// Authenticate confirms the lookup credentials before any request is made.
	Authenticate(ctx context.Context) error

	Track(ctx context.Context, id string) (models.TrackDescriptor, error)
	Episode(ctx context.Context, id string) (models.TrackDescriptor, error)

	// AlbumTracks returns album members in album order.
	AlbumTracks(ctx context.Context, id string) ([]models.TrackDescriptor, error)

	// PlaylistTracks returns playlist members in playlist order. Local files and removed items are skipped.
	PlaylistTracks(ctx context.Context, id string) ([]models.TrackDescriptor, error)
}

// Decoder turns a compressed stream into PCM samples.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader) (models.Samples, error)
}

// Encoder writes PCM samples to w in the configured format.
type Encoder interface {
	Encode(ctx context.Context, s models.Samples, cfg models.FormatConfig, w io.Writer) error
}

// Tagger writes metadata into an encoded file in place.
type Tagger interface {
	Tag(path string, format models.Format, tags models.Tags) error
}

// ArtFetcher downloads cover images.
type ArtFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Prompter asks the operator for input when no identifiers were given.
type Prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}
