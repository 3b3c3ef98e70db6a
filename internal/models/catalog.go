package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/spotsync/internal/shared"
)

// PersistedTrack is a catalog row caching resolved metadata for a remote track.
type PersistedTrack struct {
	base
	remoteID   string
	kind       Kind
	title      string
	artist     string
	album      string
	durationMS int
}

// NewPersistedTrack builds a catalog row from a resolved descriptor.
func NewPersistedTrack(sequence int, d TrackDescriptor) *PersistedTrack {
	return &PersistedTrack{
		base:       newBase(sequence),
		remoteID:   d.ID,
		kind:       d.Kind,
		title:      d.Title,
		artist:     strings.Join(d.Artists, ", "),
		album:      d.Album,
		durationMS: d.DurationMS,
	}
}

func (t *PersistedTrack) RemoteID() string     { return t.remoteID }
func (t *PersistedTrack) Kind() Kind           { return t.kind }
func (t *PersistedTrack) SetKind(k Kind)       { t.kind = k }
func (t *PersistedTrack) Title() string        { return t.title }
func (t *PersistedTrack) SetTitle(s string)    { t.title = s }
func (t *PersistedTrack) Artist() string       { return t.artist }
func (t *PersistedTrack) SetArtist(s string)   { t.artist = s }
func (t *PersistedTrack) Album() string        { return t.album }
func (t *PersistedTrack) SetAlbum(s string)    { t.album = s }
func (t *PersistedTrack) DurationMS() int      { return t.durationMS }
func (t *PersistedTrack) SetDurationMS(ms int) { t.durationMS = ms }

// Validate checks that the row identifies a track or episode.
func (t *PersistedTrack) Validate() error {
	if !remoteIDPattern.MatchString(t.remoteID) {
		return fmt.Errorf("%w: remote id %q", shared.ErrInvalidInput, t.remoteID)
	}
	if t.kind != KindTrack && t.kind != KindEpisode {
		return fmt.Errorf("%w: kind %q cannot be cataloged", shared.ErrInvalidInput, t.kind)
	}
	if t.title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrInvalidInput)
	}
	return nil
}

// RunStatus is the lifecycle state of a [BatchRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// BatchRun records one download invocation against a destination folder.
type BatchRun struct {
	base
	destination       string
	sources           []string
	status            RunStatus
	tracksTotal       int
	tracksCompleted   int
	tracksSkipped     int
	tracksUnavailable int
	tracksFailed      int
	bytesWritten      int64
	errorMessage      string
	startedAt         time.Time
	completedAt       *time.Time
}

// NewBatchRun creates a running BatchRun started now.
func NewBatchRun(sequence int, destination string, sources []string) *BatchRun {
	b := newBase(sequence)
	return &BatchRun{
		base:        b,
		destination: destination,
		sources:     sources,
		status:      RunRunning,
		startedAt:   b.createdAt,
	}
}

func (r *BatchRun) Destination() string         { return r.destination }
func (r *BatchRun) Sources() []string           { return r.sources }
func (r *BatchRun) Status() RunStatus           { return r.status }
func (r *BatchRun) SetStatus(s RunStatus)       { r.status = s }
func (r *BatchRun) TracksTotal() int            { return r.tracksTotal }
func (r *BatchRun) SetTracksTotal(n int)        { r.tracksTotal = n }
func (r *BatchRun) TracksCompleted() int        { return r.tracksCompleted }
func (r *BatchRun) SetTracksCompleted(n int)    { r.tracksCompleted = n }
func (r *BatchRun) TracksSkipped() int          { return r.tracksSkipped }
func (r *BatchRun) SetTracksSkipped(n int)      { r.tracksSkipped = n }
func (r *BatchRun) TracksUnavailable() int      { return r.tracksUnavailable }
func (r *BatchRun) SetTracksUnavailable(n int)  { r.tracksUnavailable = n }
func (r *BatchRun) TracksFailed() int           { return r.tracksFailed }
func (r *BatchRun) SetTracksFailed(n int)       { r.tracksFailed = n }
func (r *BatchRun) BytesWritten() int64         { return r.bytesWritten }
func (r *BatchRun) SetBytesWritten(n int64)     { r.bytesWritten = n }
func (r *BatchRun) ErrorMessage() string        { return r.errorMessage }
func (r *BatchRun) SetErrorMessage(s string)    { r.errorMessage = s }
func (r *BatchRun) StartedAt() time.Time        { return r.startedAt }
func (r *BatchRun) SetStartedAt(t time.Time)    { r.startedAt = t }
func (r *BatchRun) CompletedAt() *time.Time     { return r.completedAt }
func (r *BatchRun) SetCompletedAt(t *time.Time) { r.completedAt = t }

// Finish stamps the completion time and derives the final status from the totals.
func (r *BatchRun) Finish(err error) {
	now := time.Now()
	r.completedAt = &now
	r.updatedAt = now

	switch {
	case err != nil:
		r.status = RunFailed
		r.errorMessage = err.Error()
	case r.tracksFailed > 0 || r.tracksUnavailable > 0:
		r.status = RunPartial
	default:
		r.status = RunCompleted
	}
}

// Validate checks required fields and that the totals are consistent.
func (r *BatchRun) Validate() error {
	if r.destination == "" {
		return fmt.Errorf("%w: destination is required", shared.ErrInvalidInput)
	}
	switch r.status {
	case RunRunning, RunCompleted, RunPartial, RunFailed:
	default:
		return fmt.Errorf("%w: unknown run status %q", shared.ErrInvalidInput, r.status)
	}
	if sum := r.tracksCompleted + r.tracksSkipped + r.tracksUnavailable + r.tracksFailed; sum > r.tracksTotal {
		return fmt.Errorf("%w: outcome counts (%d) exceed total (%d)", shared.ErrInvalidInput, sum, r.tracksTotal)
	}
	return nil
}
