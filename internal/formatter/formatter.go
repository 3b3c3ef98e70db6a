// package formatter renders batch summaries, the run log and sync records as text, JSON or CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/state"
	"github.com/desertthunder/spotsync/internal/tasks"
)

// Format selects an output encoding.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	CSV  Format = "csv"
)

// ParseFormat accepts "text", "json" or "csv" (case-insensitive). Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", Text:
		return Text, nil
	case JSON, CSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or csv)", s)
	}
}

// RenderSummary encodes a batch summary in the given format.
//
// CSV output lists one row per track that did not complete.
func RenderSummary(s *tasks.Summary, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return SummaryToJSON(s)
	case CSV:
		return FailuresToCSV(s)
	default:
		return SummaryToText(s), nil
	}
}

// SummaryToText renders the end-of-batch report.
func SummaryToText(s *tasks.Summary) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Destination: %s\n", s.Destination)
	if s.Format != "" {
		fmt.Fprintf(&buf, "Format: %s\n", s.Format)
	}
	if s.Policy != "" {
		fmt.Fprintf(&buf, "Throttle: %s\n", s.Policy)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", s.Total)

	fmt.Fprintf(&buf, "  Completed:         %d\n", s.Completed)
	fmt.Fprintf(&buf, "  Already present:   %d\n", s.SkippedPresent)
	fmt.Fprintf(&buf, "  Unavailable:       %d\n", s.SkippedUnavailable)
	fmt.Fprintf(&buf, "  Failed:            %d\n", s.Failed)
	fmt.Fprintf(&buf, "  Written:           %s\n", humanize.Bytes(uint64(max(s.BytesWritten, 0))))
	fmt.Fprintf(&buf, "  Elapsed:           %s\n", FormatElapsed(s.Elapsed))

	writeFailures(&buf, "Failed", s.Failures)
	writeFailures(&buf, "Unavailable", s.Unavailable)

	if len(s.Removed) > 0 {
		fmt.Fprintf(&buf, "\nNo longer in sources (%d, files kept):\n", len(s.Removed))
		for _, id := range s.Removed {
			fmt.Fprintf(&buf, "  - %s\n", id)
		}
	}

	if len(s.InvalidInputs) > 0 {
		fmt.Fprintf(&buf, "\nIgnored inputs (%d):\n", len(s.InvalidInputs))
		for _, e := range s.InvalidInputs {
			fmt.Fprintf(&buf, "  - %s: %v\n", e.Input, e.Err)
		}
	}

	if len(s.Warnings) > 0 {
		fmt.Fprintf(&buf, "\nWarnings:\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&buf, "  ! %s\n", w)
		}
	}

	if s.RunID != "" {
		fmt.Fprintf(&buf, "\nRun: %s\n", s.RunID)
	}

	return buf.Bytes()
}

func writeFailures(buf *bytes.Buffer, heading string, failures []tasks.Failure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(buf, "\n%s (%d):\n", heading, len(failures))
	for _, f := range failures {
		fmt.Fprintf(buf, "  %d. %s: %v\n", f.Track.Position+1, f.Track.Label(), f.Reason)
	}
}

type failureJSON struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artists  string `json:"artists"`
	Reason   string `json:"reason"`
}

type inputJSON struct {
	Input  string `json:"input"`
	Reason string `json:"reason"`
}

type summaryJSON struct {
	Destination        string        `json:"destination"`
	Format             models.Format `json:"format,omitempty"`
	Policy             string        `json:"policy,omitempty"`
	Total              int           `json:"total"`
	Completed          int           `json:"completed"`
	SkippedPresent     int           `json:"skipped_present"`
	SkippedUnavailable int           `json:"skipped_unavailable"`
	Failed             int           `json:"failed"`
	BytesWritten       int64         `json:"bytes_written"`
	ElapsedSeconds     float64       `json:"elapsed_seconds"`
	Failures           []failureJSON `json:"failures"`
	Unavailable        []failureJSON `json:"unavailable"`
	Removed            []string      `json:"removed"`
	InvalidInputs      []inputJSON   `json:"invalid_inputs"`
	Warnings           []string      `json:"warnings"`
	RunID              string        `json:"run_id,omitempty"`
}

func toFailureJSON(failures []tasks.Failure) []failureJSON {
	out := make([]failureJSON, 0, len(failures))
	for _, f := range failures {
		out = append(out, failureJSON{
			Position: f.Track.Position,
			ID:       f.Track.ID,
			Title:    f.Track.Title,
			Artists:  strings.Join(f.Track.Artists, ", "),
			Reason:   errString(f.Reason),
		})
	}
	return out
}

// SummaryToJSON renders the summary as indented JSON. Lists are always present, possibly empty.
func SummaryToJSON(s *tasks.Summary) ([]byte, error) {
	out := summaryJSON{
		Destination:        s.Destination,
		Format:             s.Format,
		Policy:             s.Policy,
		Total:              s.Total,
		Completed:          s.Completed,
		SkippedPresent:     s.SkippedPresent,
		SkippedUnavailable: s.SkippedUnavailable,
		Failed:             s.Failed,
		BytesWritten:       s.BytesWritten,
		ElapsedSeconds:     s.Elapsed.Seconds(),
		Failures:           toFailureJSON(s.Failures),
		Unavailable:        toFailureJSON(s.Unavailable),
		Removed:            append([]string{}, s.Removed...),
		InvalidInputs:      make([]inputJSON, 0, len(s.InvalidInputs)),
		Warnings:           append([]string{}, s.Warnings...),
		RunID:              s.RunID,
	}
	for _, e := range s.InvalidInputs {
		out.InvalidInputs = append(out.InvalidInputs, inputJSON{Input: e.Input, Reason: errString(e.Err)})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary: %w", err)
	}
	return append(data, '\n'), nil
}

// FailuresToCSV writes one row per failed or unavailable track with columns:
// Position, ID, Title, Artists, Outcome, Reason
func FailuresToCSV(s *tasks.Summary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Artists", "Outcome", "Reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	write := func(failures []tasks.Failure, outcome models.Outcome) error {
		for _, f := range failures {
			record := []string{
				strconv.Itoa(f.Track.Position + 1),
				f.Track.ID,
				f.Track.Title,
				strings.Join(f.Track.Artists, ", "),
				outcome.String(),
				errString(f.Reason),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	}

	if err := write(s.Failures, models.Failed); err != nil {
		return nil, err
	}
	if err := write(s.Unavailable, models.SkippedUnavailable); err != nil {
		return nil, err
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RenderRuns encodes the run log in the given format.
func RenderRuns(runs []*models.BatchRun, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return RunsToJSON(runs)
	case CSV:
		return RunsToCSV(runs)
	default:
		return RunsToText(runs), nil
	}
}

// RunsToText renders one line per run, newest first as given.
func RunsToText(runs []*models.BatchRun) []byte {
	var buf bytes.Buffer
	if len(runs) == 0 {
		buf.WriteString("No runs recorded.\n")
		return buf.Bytes()
	}

	for _, r := range runs {
		fmt.Fprintf(&buf, "#%d %-9s %s  %d/%d completed, %d skipped, %d unavailable, %d failed, %s  (%s)\n",
			r.Sequence(),
			r.Status(),
			r.Destination(),
			r.TracksCompleted(),
			r.TracksTotal(),
			r.TracksSkipped(),
			r.TracksUnavailable(),
			r.TracksFailed(),
			humanize.Bytes(uint64(max(r.BytesWritten(), 0))),
			humanize.Time(r.StartedAt()),
		)
		if msg := r.ErrorMessage(); msg != "" {
			fmt.Fprintf(&buf, "    error: %s\n", msg)
		}
	}
	return buf.Bytes()
}

type runJSON struct {
	ID                string           `json:"id"`
	Sequence          int              `json:"sequence"`
	Destination       string           `json:"destination"`
	Sources           []string         `json:"sources"`
	Status            models.RunStatus `json:"status"`
	TracksTotal       int              `json:"tracks_total"`
	TracksCompleted   int              `json:"tracks_completed"`
	TracksSkipped     int              `json:"tracks_skipped"`
	TracksUnavailable int              `json:"tracks_unavailable"`
	TracksFailed      int              `json:"tracks_failed"`
	BytesWritten      int64            `json:"bytes_written"`
	ErrorMessage      string           `json:"error_message,omitempty"`
	StartedAt         time.Time        `json:"started_at"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
}

// RunsToJSON renders the run log as an indented JSON array.
func RunsToJSON(runs []*models.BatchRun) ([]byte, error) {
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		out = append(out, runJSON{
			ID:                r.ID(),
			Sequence:          r.Sequence(),
			Destination:       r.Destination(),
			Sources:           append([]string{}, r.Sources()...),
			Status:            r.Status(),
			TracksTotal:       r.TracksTotal(),
			TracksCompleted:   r.TracksCompleted(),
			TracksSkipped:     r.TracksSkipped(),
			TracksUnavailable: r.TracksUnavailable(),
			TracksFailed:      r.TracksFailed(),
			BytesWritten:      r.BytesWritten(),
			ErrorMessage:      r.ErrorMessage(),
			StartedAt:         r.StartedAt(),
			CompletedAt:       r.CompletedAt(),
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runs: %w", err)
	}
	return append(data, '\n'), nil
}

// RunsToCSV converts the run log to CSV with columns:
// Sequence, ID, Destination, Status, Total, Completed, Skipped, Unavailable, Failed, Bytes, StartedAt, CompletedAt
func RunsToCSV(runs []*models.BatchRun) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "ID", "Destination", "Status", "Total", "Completed", "Skipped", "Unavailable", "Failed", "Bytes", "StartedAt", "CompletedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range runs {
		completed := ""
		if at := r.CompletedAt(); at != nil {
			completed = at.UTC().Format(time.RFC3339)
		}
		record := []string{
			strconv.Itoa(r.Sequence()),
			r.ID(),
			r.Destination(),
			string(r.Status()),
			strconv.Itoa(r.TracksTotal()),
			strconv.Itoa(r.TracksCompleted()),
			strconv.Itoa(r.TracksSkipped()),
			strconv.Itoa(r.TracksUnavailable()),
			strconv.Itoa(r.TracksFailed()),
			strconv.FormatInt(r.BytesWritten(), 10),
			r.StartedAt().UTC().Format(time.RFC3339),
			completed,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RecordToText renders a folder's sync record for `history show`.
//
// With verbose set every history entry is listed; otherwise only the counts are shown.
func RecordToText(folder string, rec state.SyncRecord, verbose bool) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Folder: %s\n", folder)
	if rec.LastSync.IsZero() {
		buf.WriteString("Last sync: never\n")
	} else {
		fmt.Fprintf(&buf, "Last sync: %s (%s)\n", rec.LastSync.Local().Format(time.DateTime), humanize.Time(rec.LastSync))
	}

	if len(rec.Sources) > 0 {
		fmt.Fprintf(&buf, "Sources (%d):\n", len(rec.Sources))
		for _, s := range rec.Sources {
			fmt.Fprintf(&buf, "  %s\n", s)
		}
	} else {
		buf.WriteString("Sources: none\n")
	}

	fmt.Fprintf(&buf, "Members: %s\n", humanize.Comma(int64(len(rec.Membership))))
	fmt.Fprintf(&buf, "Downloaded: %s\n", humanize.Comma(int64(len(rec.History))))

	if verbose {
		for _, id := range rec.History {
			fmt.Fprintf(&buf, "  %s\n", id)
		}
	}

	return buf.Bytes()
}

// FormatElapsed rounds a duration for display: sub-second values keep milliseconds.
func FormatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
