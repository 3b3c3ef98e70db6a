package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/spotsync/internal/shared"
)

// Kind tags what an [Identifier] refers to.
type Kind int

const (
	KindTrack Kind = iota
	KindPlaylist
	KindAlbum
	KindEpisode
)

func (k Kind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindPlaylist:
		return "playlist"
	case KindAlbum:
		return "album"
	case KindEpisode:
		return "episode"
	default:
		return ""
	}
}

// IsContainer reports whether the kind expands to multiple tracks.
func (k Kind) IsContainer() bool {
	return k == KindPlaylist || k == KindAlbum
}

// ParseKind maps a kind name such as "album" to its [Kind].
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "track":
		return KindTrack, true
	case "playlist":
		return KindPlaylist, true
	case "album":
		return KindAlbum, true
	case "episode":
		return KindEpisode, true
	default:
		return 0, false
	}
}

var (
	remoteIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)
	localePattern   = regexp.MustCompile(`^intl-[a-z]{2}$`)
)

const webHost = "open.spotify.com"

// Identifier is a parsed user-supplied reference to a track, playlist, album or episode.
type Identifier struct {
	Kind Kind
	ID   string
	Raw  string
}

// URI returns the canonical "spotify:<kind>:<id>" form.
func (i Identifier) URI() string {
	return fmt.Sprintf("spotify:%s:%s", i.Kind, i.ID)
}

func (i Identifier) String() string {
	return i.URI()
}

// ParseIdentifier parses a Spotify URI ("spotify:track:<id>") or web URL
// ("https://open.spotify.com/[intl-xx/]track/<id>?si=...").
//
// Errors wrap [shared.ErrInvalidIdentifier].
func ParseIdentifier(raw string) (Identifier, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return Identifier{}, fmt.Errorf("%w: empty input", shared.ErrInvalidIdentifier)
	}

	var kindPart, idPart string
	if rest, ok := strings.CutPrefix(input, "spotify:"); ok {
		parts := strings.Split(rest, ":")
		if len(parts) != 2 {
			return Identifier{}, fmt.Errorf("%w: malformed URI %q", shared.ErrInvalidIdentifier, raw)
		}
		kindPart, idPart = parts[0], parts[1]
	} else {
		u, err := url.Parse(input)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host != webHost {
			return Identifier{}, fmt.Errorf("%w: unrecognized URL %q", shared.ErrInvalidIdentifier, raw)
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) > 0 && localePattern.MatchString(segments[0]) {
			segments = segments[1:]
		}
		if len(segments) != 2 {
			return Identifier{}, fmt.Errorf("%w: unrecognized URL path %q", shared.ErrInvalidIdentifier, u.Path)
		}
		kindPart, idPart = segments[0], segments[1]
	}

	kind, ok := ParseKind(kindPart)
	if !ok {
		return Identifier{}, fmt.Errorf("%w: unsupported kind %q", shared.ErrInvalidIdentifier, kindPart)
	}
	if !remoteIDPattern.MatchString(idPart) {
		return Identifier{}, fmt.Errorf("%w: malformed id %q", shared.ErrInvalidIdentifier, idPart)
	}

	return Identifier{Kind: kind, ID: idPart, Raw: raw}, nil
}
