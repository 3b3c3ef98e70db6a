package formatter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/state"
	"github.com/desertthunder/spotsync/internal/tasks"
	tu "github.com/desertthunder/spotsync/internal/testing"
)

func testSummary() *tasks.Summary {
	failed := tu.Descriptor(2, "Broken", "A", "B")
	failed.Position = 1
	gone := tu.Descriptor(3, "Gone")
	gone.Position = 2

	return &tasks.Summary{
		Destination:        "/music",
		Format:             models.FormatMP3,
		Policy:             "parallel(4)",
		Total:              4,
		Completed:          1,
		SkippedPresent:     1,
		SkippedUnavailable: 1,
		Failed:             1,
		BytesWritten:       5_000_000,
		Elapsed:            90 * time.Second,
		Failures:           []tasks.Failure{{Track: failed, Reason: &tasks.StageError{Phase: tasks.Decoding, Err: shared.ErrDecode}}},
		Unavailable:        []tasks.Failure{{Track: gone, Reason: shared.ErrTrackUnavailable}},
		Removed:            []string{tu.TrackID(9)},
		InvalidInputs:      []*tasks.IdentifierError{{Input: "spotify:artist:x", Err: shared.ErrInvalidIdentifier}},
		Warnings:           []string{"history not updated for Artist - One"},
		RunID:              "run-1",
	}
}

func TestParseFormat(t *testing.T) {
	tc := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: Text},
		{in: "text", want: Text},
		{in: "JSON", want: JSON},
		{in: " csv ", want: CSV},
		{in: "yaml", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(fmt.Sprintf("Parse %q", tt.in), func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummaryRendering(t *testing.T) {
	t.Run("Text", func(t *testing.T) {
		out := string(SummaryToText(testSummary()))

		for _, want := range []string{
			"Destination: /music",
			"Completed:         1",
			"Written:           5.0 MB",
			"Elapsed:           1m30s",
			"2. A, B - Broken: decoding: decode failed",
			"3. Artist - Gone: track unavailable",
			"files kept",
			"spotify:artist:x: invalid identifier",
			"! history not updated",
			"Run: run-1",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("text summary missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Text Omits Empty Sections", func(t *testing.T) {
		out := string(SummaryToText(&tasks.Summary{Destination: "/music", Total: 1, Completed: 1}))
		for _, unwanted := range []string{"Failed (", "Unavailable (", "Warnings", "Run:"} {
			if strings.Contains(out, unwanted) {
				t.Errorf("expected no %q section:\n%s", unwanted, out)
			}
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := SummaryToJSON(testSummary())
		if err != nil {
			t.Fatalf("SummaryToJSON failed: %v", err)
		}

		var decoded summaryJSON
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Completed != 1 || decoded.Total != 4 || decoded.ElapsedSeconds != 90 {
			t.Errorf("unexpected counts %+v", decoded)
		}
		if len(decoded.Failures) != 1 || decoded.Failures[0].Artists != "A, B" {
			t.Errorf("unexpected failures %+v", decoded.Failures)
		}
		if decoded.InvalidInputs[0].Reason != shared.ErrInvalidIdentifier.Error() {
			t.Errorf("unexpected invalid inputs %+v", decoded.InvalidInputs)
		}
	})

	t.Run("JSON Lists Never Null", func(t *testing.T) {
		data, err := SummaryToJSON(&tasks.Summary{Destination: "/music"})
		if err != nil {
			t.Fatalf("SummaryToJSON failed: %v", err)
		}
		if strings.Contains(string(data), "null") {
			t.Errorf("expected empty lists, got %s", data)
		}
	})

	t.Run("CSV", func(t *testing.T) {
		data, err := FailuresToCSV(testSummary())
		if err != nil {
			t.Fatalf("FailuresToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header and 2 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "Position,ID,Title,Artists,Outcome,Reason" {
			t.Errorf("unexpected headers %v", records[0])
		}
		if records[1][4] != "failed" || records[2][4] != "skipped_unavailable" {
			t.Errorf("unexpected outcomes %q, %q", records[1][4], records[2][4])
		}
	})

	t.Run("Dispatch", func(t *testing.T) {
		for _, f := range []Format{Text, JSON, CSV} {
			if _, err := RenderSummary(testSummary(), f); err != nil {
				t.Errorf("RenderSummary(%s) error = %v", f, err)
			}
		}
	})
}

func testRuns() []*models.BatchRun {
	done := models.NewBatchRun(2, "/music", []string{"spotify:album:" + tu.TrackID(1)})
	done.SetID("run-2")
	done.SetTracksTotal(10)
	done.SetTracksCompleted(8)
	done.SetTracksFailed(2)
	done.SetBytesWritten(2048)
	done.Finish(nil)

	failed := models.NewBatchRun(1, "/podcasts", nil)
	failed.SetID("run-1")
	failed.Finish(shared.ErrNoTracksCompleted)

	return []*models.BatchRun{done, failed}
}

func TestRunRendering(t *testing.T) {
	t.Run("Text", func(t *testing.T) {
		out := string(RunsToText(testRuns()))
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), out)
		}
		if !strings.HasPrefix(lines[0], "#2 partial") || !strings.Contains(lines[0], "8/10 completed") {
			t.Errorf("unexpected first line %q", lines[0])
		}
		if !strings.Contains(lines[2], "error: no tracks completed") {
			t.Errorf("expected error line, got %q", lines[2])
		}
	})

	t.Run("Text Empty", func(t *testing.T) {
		if out := string(RunsToText(nil)); out != "No runs recorded.\n" {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := RunsToJSON(testRuns())
		if err != nil {
			t.Fatalf("RunsToJSON failed: %v", err)
		}
		var decoded []runJSON
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0].Status != models.RunPartial || decoded[1].Status != models.RunFailed {
			t.Errorf("unexpected runs %+v", decoded)
		}
		if decoded[0].CompletedAt == nil {
			t.Error("expected completion time")
		}
	})

	t.Run("CSV", func(t *testing.T) {
		data, err := RunsToCSV(testRuns())
		if err != nil {
			t.Fatalf("RunsToCSV failed: %v", err)
		}
		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 3 || records[1][1] != "run-2" || records[1][9] != "2048" {
			t.Errorf("unexpected records %v", records)
		}
	})
}

func TestRecordToText(t *testing.T) {
	rec := state.SyncRecord{
		Version:    1,
		Sources:    []string{"spotify:playlist:" + tu.TrackID(5)},
		Membership: []string{tu.TrackID(1), tu.TrackID(2)},
		History:    []string{tu.TrackID(1)},
		LastSync:   time.Now().Add(-2 * time.Hour),
	}

	t.Run("Counts", func(t *testing.T) {
		out := string(RecordToText("/music", rec, false))
		for _, want := range []string{"Folder: /music", "2 hours ago", "Sources (1)", "Members: 2", "Downloaded: 1"} {
			if !strings.Contains(out, want) {
				t.Errorf("missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "  "+tu.TrackID(1)) {
			t.Error("history entries listed without verbose")
		}
	})

	t.Run("Verbose", func(t *testing.T) {
		out := string(RecordToText("/music", rec, true))
		if !strings.Contains(out, "  "+tu.TrackID(1)) {
			t.Errorf("expected history entries:\n%s", out)
		}
	})

	t.Run("Never Synced", func(t *testing.T) {
		out := string(RecordToText("/music", state.SyncRecord{}, false))
		if !strings.Contains(out, "Last sync: never") || !strings.Contains(out, "Sources: none") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

func TestFormatElapsed(t *testing.T) {
	tc := []struct {
		in   time.Duration
		want string
	}{
		{in: 1234567 * time.Microsecond, want: "1s"},
		{in: 250 * time.Millisecond, want: "250ms"},
		{in: 90*time.Second + 400*time.Millisecond, want: "1m30s"},
	}
	for _, tt := range tc {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatElapsed(tt.in); got != tt.want {
				t.Errorf("FormatElapsed(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
