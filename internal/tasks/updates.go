package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/spotsync/internal/models"
)

// ProgressUpdate represents a progress event during a batch run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	TrackID string // Track the update refers to, "" for batch-level updates
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Phase enumerates batch stages and the per-track pipeline states.
type Phase int

const (
	Resolving Phase = iota
	Filtering
	Fetching
	Decoding
	Transcoding
	Tagging
	Writing
	Done
	Unavailable
	Failed
	Skipped
	Waiting
	Summarizing
)

func (p Phase) String() string {
	switch p {
	case Resolving:
		return "resolving"
	case Filtering:
		return "filtering"
	case Fetching:
		return "fetching"
	case Decoding:
		return "decoding"
	case Transcoding:
		return "transcoding"
	case Tagging:
		return "tagging"
	case Writing:
		return "writing"
	case Done:
		return "done"
	case Unavailable:
		return "unavailable"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Waiting:
		return "waiting"
	case Summarizing:
		return "summarizing"
	default:
		return ""
	}
}

// Terminal reports whether p ends a track.
func (p Phase) Terminal() bool {
	switch p {
	case Done, Unavailable, Failed, Skipped:
		return true
	default:
		return false
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func resolvingUpdate(step, total int, raw string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolving,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving %s...", step, total, raw),
	}
}

func filteredUpdate(admitted, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Filtering,
		Step:    admitted,
		Total:   admitted + skipped,
		Message: fmt.Sprintf("%d to download, %d already present", admitted, skipped),
	}
}

func stageUpdate(phase Phase, d models.TrackDescriptor) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		TrackID: d.ID,
		Message: fmt.Sprintf("%s: %s", phase, d.Label()),
	}
}

func waitingUpdate(next models.TrackDescriptor, delay time.Duration) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Waiting,
		TrackID: next.ID,
		Message: fmt.Sprintf("Waiting %s before %s...", delay.Round(time.Millisecond), next.Label()),
		Data:    delay,
	}
}

func resultPhase(o models.Outcome) Phase {
	switch o {
	case models.Completed:
		return Done
	case models.SkippedAlreadyPresent:
		return Skipped
	case models.SkippedUnavailable:
		return Unavailable
	default:
		return Failed
	}
}

func resultUpdate(step, total int, r models.JobResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s", step, total, r.Track.Label())
	switch r.Outcome {
	case models.SkippedAlreadyPresent:
		msg = fmt.Sprintf("[%d/%d] = %s (already present)", step, total, r.Track.Label())
	case models.SkippedUnavailable:
		msg = fmt.Sprintf("[%d/%d] - %s: %v", step, total, r.Track.Label(), r.Reason)
	case models.Failed:
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, r.Track.Label(), r.Reason)
	}
	return ProgressUpdate{
		Phase:   resultPhase(r.Outcome),
		Step:    step,
		Total:   total,
		TrackID: r.Track.ID,
		Message: msg,
		Data:    r,
	}
}

func summaryUpdate(s *Summary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Summarizing,
		Step:    s.Processed(),
		Total:   s.Total,
		Message: s.String(),
		Data:    s,
	}
}
