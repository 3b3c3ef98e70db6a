package services

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

const coverMIME = "image/jpeg"

// FileTagger writes tags to mp3 (ID3v2.4) and flac (Vorbis comment) files.
type FileTagger struct{}

// NewFileTagger creates a tagger.
func NewFileTagger() *FileTagger {
	return &FileTagger{}
}

// Tag writes tags into the file at path, replacing any existing title, artist, album and track frames.
func (t *FileTagger) Tag(path string, format models.Format, tags models.Tags) error {
	var err error
	switch format {
	case models.FormatMP3:
		err = tagMP3(path, tags)
	case models.FormatFLAC:
		err = tagFLAC(path, tags)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTag, err)
	}
	return nil
}

// trackPosition renders "n/total", "n" or "" when unknown.
func trackPosition(tags models.Tags) string {
	switch {
	case tags.TrackNumber <= 0:
		return ""
	case tags.AlbumTracks > 0:
		return fmt.Sprintf("%d/%d", tags.TrackNumber, tags.AlbumTracks)
	default:
		return strconv.Itoa(tags.TrackNumber)
	}
}

func tagMP3(path string, tags models.Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetVersion(4)
	tag.SetTitle(tags.Title)
	tag.SetArtist(tags.Artist)
	tag.SetAlbum(tags.Album)

	if pos := trackPosition(tags); pos != "" {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), pos)
	}

	if len(tags.Cover) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    coverMIME,
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     tags.Cover,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag: %w", err)
	}
	return nil
}

func tagFLAC(path string, tags models.Tags) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := flac.ParseBytes(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse flac: %w", err)
	}

	comments := flacvorbis.New()
	for _, field := range []struct{ key, value string }{
		{flacvorbis.FIELD_TITLE, tags.Title},
		{flacvorbis.FIELD_ARTIST, tags.Artist},
		{flacvorbis.FIELD_ALBUM, tags.Album},
		{flacvorbis.FIELD_TRACKNUMBER, trackPosition(tags)},
	} {
		if field.value == "" {
			continue
		}
		if err := comments.Add(field.key, field.value); err != nil {
			return fmt.Errorf("add %s: %w", field.key, err)
		}
	}

	// Replace existing comment and picture blocks rather than stacking duplicates.
	meta := make([]*flac.MetaDataBlock, 0, len(f.Meta)+2)
	for _, block := range f.Meta {
		if block.Type == flac.VorbisComment || block.Type == flac.Picture {
			continue
		}
		meta = append(meta, block)
	}
	commentBlock := comments.Marshal()
	meta = append(meta, &commentBlock)

	if len(tags.Cover) > 0 {
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover", tags.Cover, coverMIME)
		if err != nil {
			return fmt.Errorf("build cover picture: %w", err)
		}
		picBlock := pic.Marshal()
		meta = append(meta, &picBlock)
	}
	f.Meta = meta

	return os.WriteFile(path, f.Marshal(), 0644)
}
