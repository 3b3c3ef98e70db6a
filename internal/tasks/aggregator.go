package tasks

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

// HistoryWriter records completed tracks. Implemented by [state.Store].
type HistoryWriter interface {
	RecordSuccess(trackID string) error
}

// Failure pairs a track with the reason it did not complete.
type Failure struct {
	Track  models.TrackDescriptor
	Reason error
}

// Summary is the user-visible outcome of a batch.
type Summary struct {
	Destination        string
	Format             models.Format
	Policy             string
	Total              int
	Completed          int
	SkippedPresent     int
	SkippedUnavailable int
	Failed             int
	BytesWritten       int64
	Elapsed            time.Duration
	Failures           []Failure          // Failed tracks in resolved order
	Unavailable        []Failure          // Unavailable tracks in resolved order
	Removed            []string           // Track IDs no longer in the sources since the last run
	InvalidInputs      []*IdentifierError // Inputs the resolver rejected
	Warnings           []string           // Non-fatal persistence problems
	RunID              string             // Catalog run ID, "" when the catalog is disabled
}

// Add tallies one result.
func (s *Summary) Add(r models.JobResult) {
	switch r.Outcome {
	case models.Completed:
		s.Completed++
		s.BytesWritten += r.Bytes
	case models.SkippedAlreadyPresent:
		s.SkippedPresent++
	case models.SkippedUnavailable:
		s.SkippedUnavailable++
		s.Unavailable = append(s.Unavailable, Failure{Track: r.Track, Reason: r.Reason})
	default:
		s.Failed++
		s.Failures = append(s.Failures, Failure{Track: r.Track, Reason: r.Reason})
	}
}

// Processed is the number of tracks with a result.
func (s *Summary) Processed() int {
	return s.Completed + s.SkippedPresent + s.SkippedUnavailable + s.Failed
}

// Warn appends a non-fatal message.
func (s *Summary) Warn(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d completed, %d already present, %d unavailable, %d failed",
		s.Completed, s.SkippedPresent, s.SkippedUnavailable, s.Failed)
	if len(s.Removed) > 0 {
		fmt.Fprintf(&b, ", %d removed from sources", len(s.Removed))
	}
	return b.String()
}

// sortByPosition orders failure lists by resolved position, since results arrive in completion order.
func (s *Summary) sortByPosition() {
	byPos := func(a, b Failure) int { return a.Track.Position - b.Track.Position }
	slices.SortStableFunc(s.Failures, byPos)
	slices.SortStableFunc(s.Unavailable, byPos)
}

// Aggregator is the single consumer of pipeline results and the only writer of history during a batch.
type Aggregator struct {
	history  HistoryWriter
	logger   *log.Logger
	progress chan<- ProgressUpdate
	total    int
}

// NewAggregator creates an aggregator expecting total results.
func NewAggregator(history HistoryWriter, total int, logger *log.Logger, progress chan<- ProgressUpdate) *Aggregator {
	return &Aggregator{
		history:  history,
		total:    total,
		logger:   shared.WithLogger(logger, "component", "aggregator"),
		progress: progress,
	}
}

// Consume reads results until the channel is closed and returns the tally.
//
// Completed tracks are recorded in history as they arrive. A history write failure becomes a
// summary warning. Consume never fails.
func (a *Aggregator) Consume(results <-chan models.JobResult) *Summary {
	s := &Summary{Total: a.total}
	step := 0
	for r := range results {
		step++
		s.Add(r)

		if r.Outcome == models.Completed && a.history != nil {
			if err := a.history.RecordSuccess(r.Track.ID); err != nil {
				a.logger.Warn("history update failed", "track", r.Track.ID, "error", err)
				s.Warn("history not updated for %s: %v", r.Track.Label(), err)
			}
		}
		sendProgress(a.progress, resultUpdate(step, a.total, r))
	}
	s.sortByPosition()
	return s
}
