package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/spotsync/internal/shared"
)

// TrackDescriptor is the immutable identity of one track in a resolved batch.
//
// Descriptors are created by the resolver and never modified afterward.
type TrackDescriptor struct {
	ID          string   // Remote base62 ID, unique within a batch
	Kind        Kind     // KindTrack or KindEpisode
	Title       string   // Display title
	Artists     []string // Artist names in credit order
	Album       string   // Album (or show) title
	TrackNumber int      // Position on the album, 0 if unknown
	AlbumTracks int      // Number of tracks on the album, 0 if unknown
	DurationMS  int      // Track duration in milliseconds
	CoverURL    string   // Largest cover image, "" if none
	Container   string   // URI of the playlist/album this came from, "" if requested directly
	Position    int      // Index in the resolved sequence
	NameSuffix  string   // Appended to the file stem when an earlier track claimed the same name
}

// URI returns the canonical "spotify:<kind>:<id>" form of the descriptor.
func (d TrackDescriptor) URI() string {
	return Identifier{Kind: d.Kind, ID: d.ID}.URI()
}

// Artist returns the first credited artist.
func (d TrackDescriptor) Artist() string {
	if len(d.Artists) == 0 {
		return ""
	}
	return d.Artists[0]
}

// Duration returns the track duration.
func (d TrackDescriptor) Duration() time.Duration {
	return time.Duration(d.DurationMS) * time.Millisecond
}

// Label returns "<artists> - <title>" for display.
func (d TrackDescriptor) Label() string {
	if len(d.Artists) == 0 {
		return d.Title
	}
	return fmt.Sprintf("%s - %s", strings.Join(d.Artists, ", "), d.Title)
}

// FileStem returns the sanitized file name without extension.
//
// More than three artists collapse to the first three followed by "and others".
func (d TrackDescriptor) FileStem() string {
	stem := d.baseStem()
	if d.NameSuffix != "" {
		stem = shared.CleanFileName(stem + " [" + d.NameSuffix + "]")
	}
	return stem
}

func (d TrackDescriptor) baseStem() string {
	if len(d.Artists) > 3 {
		return shared.CleanFileName(fmt.Sprintf("%s, and others - %s", strings.Join(d.Artists[:3], ", "), d.Title))
	}
	return shared.CleanFileName(d.Label())
}

// LegacyFileStem returns the name earlier releases used for tracks with more than three artists.
// Suffixed tracks have none, since the legacy name belongs to the track that claimed it first.
func (d TrackDescriptor) LegacyFileStem() (string, bool) {
	if len(d.Artists) <= 3 || d.NameSuffix != "" {
		return "", false
	}
	return shared.CleanFileName(fmt.Sprintf("%s, ... - %s", strings.Join(d.Artists[:3], ", "), d.Title)), true
}

// DisambiguateFileStems gives every track after the first that shares a file stem
// (case-insensitively) a suffix from its remote ID, so no two tracks write the same file.
func DisambiguateFileStems(tracks []TrackDescriptor) {
	claimed := make(map[string]struct{}, len(tracks))
	for i := range tracks {
		d := &tracks[i]
		key := strings.ToLower(d.FileStem())
		if _, taken := claimed[key]; taken {
			d.NameSuffix = d.ID[max(len(d.ID)-shortIDLen, 0):]
			key = strings.ToLower(d.FileStem())
			if _, taken := claimed[key]; taken {
				d.NameSuffix = d.ID
				key = strings.ToLower(d.FileStem())
			}
		}
		claimed[key] = struct{}{}
	}
}

const shortIDLen = 8

// Outcome classifies a [JobResult].
type Outcome int

const (
	Completed Outcome = iota
	SkippedAlreadyPresent
	SkippedUnavailable
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case SkippedAlreadyPresent:
		return "skipped_present"
	case SkippedUnavailable:
		return "skipped_unavailable"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// JobResult is the outcome of one track pipeline run.
//
// Reason is set for SkippedUnavailable and Failed.
type JobResult struct {
	Track    TrackDescriptor
	Outcome  Outcome
	Reason   error
	Path     string
	Bytes    int64
	Duration time.Duration
}
