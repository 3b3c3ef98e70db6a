package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/retry"
	tu "github.com/desertthunder/spotsync/internal/testing"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// remoteID pads prefix with n to a valid 22 character ID.
func remoteID(prefix string, n int) string {
	return fmt.Sprintf("%s%0*d", prefix, 22-len(prefix), n)
}

func trackURI(n int) string {
	return "spotify:track:" + tu.TrackID(n)
}

func fastRetry() retry.Config {
	return retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2}
}

type fakeCollaborators struct {
	streamer *tu.MockStreamer
	decoder  *tu.MockDecoder
	encoder  *tu.MockEncoder
	tagger   *tu.MockTagger
	art      *tu.MockArtFetcher
}

func newFakeCollaborators() *fakeCollaborators {
	return &fakeCollaborators{
		streamer: &tu.MockStreamer{},
		decoder:  &tu.MockDecoder{},
		encoder:  &tu.MockEncoder{},
		tagger:   &tu.MockTagger{},
		art:      &tu.MockArtFetcher{Data: []byte("cover")},
	}
}

func (f *fakeCollaborators) Collaborators() Collaborators {
	return Collaborators{
		Streamer: f.streamer,
		Decoder:  f.decoder,
		Encoder:  f.encoder,
		Tagger:   f.tagger,
		Art:      f.art,
	}
}

// metadataFor serves descs as directly requested tracks.
func metadataFor(descs ...models.TrackDescriptor) *tu.MockMetadata {
	m := &tu.MockMetadata{Tracks: make(map[string]models.TrackDescriptor)}
	for _, d := range descs {
		m.Tracks[d.ID] = d
	}
	return m
}

func collect(ch <-chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}
