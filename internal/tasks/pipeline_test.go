package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
	tu "github.com/desertthunder/spotsync/internal/testing"
)

func newTestPipeline(f *fakeCollaborators, opts ...PipelineOption) *Pipeline {
	opts = append([]PipelineOption{WithRetry(fastRetry())}, opts...)
	return NewPipeline(f.Collaborators(), testLogger(), opts...)
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected no files, found %v", names)
	}
}

func TestPipelineRun(t *testing.T) {
	mp3 := models.FormatConfig{Format: models.FormatMP3}
	track := tu.Descriptor(1, "Song")
	track.CoverURL = "https://i.scdn.co/image/cover"

	t.Run("Completed", func(t *testing.T) {
		dir := t.TempDir()
		f := newFakeCollaborators()
		progress := make(chan ProgressUpdate, 20)

		result := newTestPipeline(f, WithProgress(progress)).Run(context.Background(), track, dir, mp3)
		if result.Outcome != models.Completed {
			t.Fatalf("expected Completed, got %s: %v", result.Outcome, result.Reason)
		}

		want := filepath.Join(dir, "Artist - Song.mp3")
		if result.Path != want {
			t.Errorf("expected path %s, got %s", want, result.Path)
		}
		if got := tu.MustReadFile(t, want); got != "stream:"+track.ID {
			t.Errorf("unexpected file content %q", got)
		}
		if result.Bytes != int64(len("stream:"+track.ID)) {
			t.Errorf("unexpected byte count %d", result.Bytes)
		}
		tu.AssertNoTempFiles(t, dir)

		tagged := f.tagger.Tagged()
		if len(tagged) != 1 || tagged[0].Title != "Song" || string(tagged[0].Cover) != "cover" {
			t.Errorf("expected tags with cover, got %+v", tagged)
		}

		var phases []Phase
		for _, u := range collect(progress) {
			phases = append(phases, u.Phase)
		}
		wantPhases := []Phase{Fetching, Decoding, Transcoding, Tagging, Writing, Done}
		if fmt.Sprint(phases) != fmt.Sprint(wantPhases) {
			t.Errorf("expected phases %v, got %v", wantPhases, phases)
		}
	})

	t.Run("Unavailable", func(t *testing.T) {
		dir := t.TempDir()
		f := newFakeCollaborators()
		f.streamer.Errors = map[string][]error{track.ID: {fmt.Errorf("%w: region", shared.ErrTrackUnavailable)}}

		result := newTestPipeline(f).Run(context.Background(), track, dir, mp3)
		if result.Outcome != models.SkippedUnavailable {
			t.Fatalf("expected SkippedUnavailable, got %s", result.Outcome)
		}
		if !errors.Is(result.Reason, shared.ErrTrackUnavailable) {
			t.Errorf("expected ErrTrackUnavailable reason, got %v", result.Reason)
		}
		if n := f.streamer.Calls(track.ID); n != 1 {
			t.Errorf("unavailable tracks must not be retried, got %d calls", n)
		}
		assertEmptyDir(t, dir)
	})

	t.Run("Failures", func(t *testing.T) {
		tc := []struct {
			name  string
			setup func(f *fakeCollaborators)
			phase Phase
			kind  error
		}{
			{
				name: "fetch exhausted",
				setup: func(f *fakeCollaborators) {
					boom := fmt.Errorf("%w: reset", shared.ErrServiceUnavailable)
					f.streamer.Errors = map[string][]error{track.ID: {boom, boom, boom}}
				},
				phase: Fetching,
				kind:  shared.ErrServiceUnavailable,
			},
			{
				name: "corrupt stream",
				setup: func(f *fakeCollaborators) {
					f.streamer.Streams = map[string][]byte{track.ID: []byte("corrupt")}
				},
				phase: Decoding,
				kind:  shared.ErrDecode,
			},
			{
				name:  "decoder error without kind",
				setup: func(f *fakeCollaborators) { f.decoder.Err = errors.New("bad header") },
				phase: Decoding,
				kind:  shared.ErrDecode,
			},
			{
				name:  "encoder error",
				setup: func(f *fakeCollaborators) { f.encoder.Err = errors.New("lame failed") },
				phase: Transcoding,
				kind:  shared.ErrEncode,
			},
			{
				name:  "tag error",
				setup: func(f *fakeCollaborators) { f.tagger.Err = errors.New("read only") },
				phase: Tagging,
				kind:  shared.ErrTag,
			},
			{
				name:  "empty output",
				setup: func(f *fakeCollaborators) { f.encoder.Empty = true },
				phase: Writing,
				kind:  shared.ErrWrite,
			},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				dir := t.TempDir()
				f := newFakeCollaborators()
				tt.setup(f)

				result := newTestPipeline(f).Run(context.Background(), track, dir, mp3)
				if result.Outcome != models.Failed {
					t.Fatalf("expected Failed, got %s", result.Outcome)
				}

				var stage *StageError
				if !errors.As(result.Reason, &stage) {
					t.Fatalf("expected StageError, got %T: %v", result.Reason, result.Reason)
				}
				if stage.Phase != tt.phase {
					t.Errorf("expected failure in %s, got %s", tt.phase, stage.Phase)
				}
				if !errors.Is(result.Reason, tt.kind) {
					t.Errorf("expected %v, got %v", tt.kind, result.Reason)
				}
				assertEmptyDir(t, dir)
			})
		}
	})

	t.Run("Retries Transient Fetch Errors", func(t *testing.T) {
		dir := t.TempDir()
		f := newFakeCollaborators()
		f.streamer.Errors = map[string][]error{track.ID: {fmt.Errorf("%w: idle", shared.ErrStreamTimeout)}}

		result := newTestPipeline(f).Run(context.Background(), track, dir, mp3)
		if result.Outcome != models.Completed {
			t.Fatalf("expected Completed after retry, got %s: %v", result.Outcome, result.Reason)
		}
		if n := f.streamer.Calls(track.ID); n != 2 {
			t.Errorf("expected 2 fetch attempts, got %d", n)
		}
	})

	t.Run("Cover Art Failure Is Not Fatal", func(t *testing.T) {
		dir := t.TempDir()
		f := newFakeCollaborators()
		f.art.Err = shared.ErrAPIRequest

		result := newTestPipeline(f).Run(context.Background(), track, dir, mp3)
		if result.Outcome != models.Completed {
			t.Fatalf("expected Completed, got %s: %v", result.Outcome, result.Reason)
		}
		if tagged := f.tagger.Tagged(); len(tagged) != 1 || tagged[0].Cover != nil {
			t.Errorf("expected tags without cover, got %+v", tagged)
		}
	})

	t.Run("Recovers Panics", func(t *testing.T) {
		dir := t.TempDir()
		f := newFakeCollaborators()
		f.encoder.Panic = true

		result := newTestPipeline(f).Run(context.Background(), track, dir, mp3)
		if result.Outcome != models.Failed {
			t.Fatalf("expected Failed, got %s", result.Outcome)
		}
		var stage *StageError
		if !errors.As(result.Reason, &stage) || stage.Phase != Transcoding {
			t.Errorf("expected transcoding StageError, got %v", result.Reason)
		}
		assertEmptyDir(t, dir)
	})

	t.Run("Clamps FLAC Compression", func(t *testing.T) {
		dir := t.TempDir()
		f := newFakeCollaborators()

		result := newTestPipeline(f).Run(context.Background(), track, dir, models.FormatConfig{Format: models.FormatFLAC, FlacCompression: 10})
		if result.Outcome != models.Completed {
			t.Fatalf("expected Completed, got %s: %v", result.Outcome, result.Reason)
		}
		configs := f.encoder.Configs()
		if len(configs) != 1 || configs[0].FlacCompression != models.MaxFlacCompression {
			t.Errorf("expected compression clamped to 8, got %+v", configs)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "Artist - Song.flac"))
	})

	t.Run("Cancelled Mid Flight", func(t *testing.T) {
		dir := t.TempDir()
		f := newFakeCollaborators()
		f.streamer.Block = map[string]bool{track.ID: true}

		ctx, cancel := context.WithCancel(context.Background())
		f.streamer.OnFetch = func(models.TrackDescriptor) { cancel() }

		result := newTestPipeline(f).Run(ctx, track, dir, mp3)
		if result.Outcome != models.Failed || !errors.Is(result.Reason, context.Canceled) {
			t.Errorf("expected cancelled failure, got %s: %v", result.Outcome, result.Reason)
		}
		assertEmptyDir(t, dir)
	})
}
