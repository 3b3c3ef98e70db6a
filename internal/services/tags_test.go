package services

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

func testCover(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode cover: %v", err)
	}
	return buf.Bytes()
}

// minimalFLAC is a stream marker plus a single empty STREAMINFO block flagged as last.
func minimalFLAC() []byte {
	data := []byte("fLaC")
	data = append(data, 0x80, 0x00, 0x00, 0x22)
	return append(data, make([]byte, 34)...)
}

func TestTrackPosition(t *testing.T) {
	tc := []struct {
		name string
		tags models.Tags
		want string
	}{
		{name: "number and total", tags: models.Tags{TrackNumber: 3, AlbumTracks: 12}, want: "3/12"},
		{name: "number only", tags: models.Tags{TrackNumber: 3}, want: "3"},
		{name: "unknown", tags: models.Tags{AlbumTracks: 12}, want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := trackPosition(tt.tags); got != tt.want {
				t.Errorf("trackPosition() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileTagger(t *testing.T) {
	tags := models.Tags{
		Title:       "Song",
		Artist:      "First",
		Album:       "Record",
		TrackNumber: 3,
		AlbumTracks: 12,
	}

	t.Run("MP3", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "song.mp3")
		if err := os.WriteFile(path, []byte("not really mpeg frames"), 0644); err != nil {
			t.Fatal(err)
		}

		withCover := tags
		withCover.Cover = testCover(t)
		if err := NewFileTagger().Tag(path, models.FormatMP3, withCover); err != nil {
			t.Fatalf("Tag() error = %v", err)
		}

		tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
		if err != nil {
			t.Fatalf("failed to reopen tag: %v", err)
		}
		defer tag.Close()

		if tag.Title() != "Song" || tag.Artist() != "First" || tag.Album() != "Record" {
			t.Errorf("unexpected tag %q / %q / %q", tag.Title(), tag.Artist(), tag.Album())
		}
		if got := tag.GetTextFrame(tag.CommonID("Track number/Position in set")).Text; got != "3/12" {
			t.Errorf("expected track 3/12, got %q", got)
		}
		if pictures := tag.GetFrames(tag.CommonID("Attached picture")); len(pictures) != 1 {
			t.Errorf("expected one attached picture, got %d", len(pictures))
		}
	})

	t.Run("FLAC", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "song.flac")
		if err := os.WriteFile(path, minimalFLAC(), 0644); err != nil {
			t.Fatal(err)
		}

		tagger := NewFileTagger()
		withCover := tags
		withCover.Cover = testCover(t)
		if err := tagger.Tag(path, models.FormatFLAC, withCover); err != nil {
			t.Fatalf("Tag() error = %v", err)
		}
		// Tagging twice must not stack duplicate blocks.
		if err := tagger.Tag(path, models.FormatFLAC, withCover); err != nil {
			t.Fatalf("second Tag() error = %v", err)
		}

		f, err := flac.ParseFile(path)
		if err != nil {
			t.Fatalf("failed to parse tagged file: %v", err)
		}

		var comments, pictures int
		for _, block := range f.Meta {
			switch block.Type {
			case flac.VorbisComment:
				comments++
				cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
				if err != nil {
					t.Fatalf("failed to parse comments: %v", err)
				}
				if title, _ := cmt.Get(flacvorbis.FIELD_TITLE); len(title) != 1 || title[0] != "Song" {
					t.Errorf("expected TITLE=Song, got %v", title)
				}
				if track, _ := cmt.Get(flacvorbis.FIELD_TRACKNUMBER); len(track) != 1 || track[0] != "3/12" {
					t.Errorf("expected TRACKNUMBER=3/12, got %v", track)
				}
			case flac.Picture:
				pictures++
			}
		}
		if comments != 1 || pictures != 1 {
			t.Errorf("expected one comment and one picture block, got %d and %d", comments, pictures)
		}
		if f.Meta[0].Type != flac.StreamInfo {
			t.Error("expected STREAMINFO to remain the first block")
		}
	})

	t.Run("Invalid FLAC", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.flac")
		os.WriteFile(path, []byte("garbage"), 0644)

		err := NewFileTagger().Tag(path, models.FormatFLAC, tags)
		if !errors.Is(err, shared.ErrTag) {
			t.Errorf("expected ErrTag, got %v", err)
		}
	})
}
