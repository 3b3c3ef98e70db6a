package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/retry"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/state"
)

// partPattern names in-progress downloads. Files matching it are never mistaken for tracks.
const partPattern = ".spotsync-*.part"

// Collaborators groups the external services a pipeline drives.
//
// Art is optional.
type Collaborators struct {
	Streamer services.Streamer
	Decoder  services.Decoder
	Encoder  services.Encoder
	Tagger   services.Tagger
	Art      services.ArtFetcher
}

// StageError records the pipeline state a track failed in.
type StageError struct {
	Phase Phase
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline moves one track through Fetching, Decoding, Transcoding, Tagging and Writing.
//
// A Pipeline holds no per-track state and may run many tracks concurrently.
type Pipeline struct {
	c        Collaborators
	retry    retry.Config
	logger   *log.Logger
	progress chan<- ProgressUpdate
}

// PipelineOption configures a [Pipeline].
type PipelineOption func(*Pipeline)

// WithRetry sets the backoff used for stream fetches.
func WithRetry(cfg retry.Config) PipelineOption {
	return func(p *Pipeline) { p.retry = cfg }
}

// WithProgress reports state transitions on ch.
func WithProgress(ch chan<- ProgressUpdate) PipelineOption {
	return func(p *Pipeline) { p.progress = ch }
}

// NewPipeline creates a pipeline over c.
func NewPipeline(c Collaborators, logger *log.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		c:      c,
		retry:  retry.DefaultConfig(),
		logger: shared.WithLogger(logger, "component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes d into dest and always returns a result.
//
// Only a Completed result leaves a file at the destination path. Every other exit removes the
// temp file.
func (p *Pipeline) Run(ctx context.Context, d models.TrackDescriptor, dest string, format models.FormatConfig) (result models.JobResult) {
	start := time.Now()
	logger := shared.WithLogger(p.logger, "track", d.ID)
	phase := Fetching

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panic", "phase", phase, "panic", r)
			result = models.JobResult{
				Track:   d,
				Outcome: models.Failed,
				Reason:  &StageError{Phase: phase, Err: fmt.Errorf("panic: %v", r)},
			}
		}
		result.Duration = time.Since(start)
	}()

	format = format.Normalize()
	fail := func(err error) models.JobResult {
		logger.Warn("track failed", "phase", phase, "error", err)
		sendProgress(p.progress, stageUpdate(Failed, d))
		return models.JobResult{Track: d, Outcome: models.Failed, Reason: &StageError{Phase: phase, Err: err}}
	}

	sendProgress(p.progress, stageUpdate(Fetching, d))
	raw, err := p.fetch(ctx, d)
	if err != nil {
		if errors.Is(err, shared.ErrTrackUnavailable) {
			logger.Info("track unavailable", "error", err)
			sendProgress(p.progress, stageUpdate(Unavailable, d))
			return models.JobResult{Track: d, Outcome: models.SkippedUnavailable, Reason: err}
		}
		return fail(err)
	}

	phase = Decoding
	sendProgress(p.progress, stageUpdate(Decoding, d))
	samples, err := p.c.Decoder.Decode(ctx, bytes.NewReader(raw))
	if err != nil {
		return fail(ensureKind(err, shared.ErrDecode))
	}

	phase = Transcoding
	sendProgress(p.progress, stageUpdate(Transcoding, d))
	w, err := state.NewAtomicWriter(filepath.Join(dest, format.FileName(d)), partPattern)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", shared.ErrWrite, err))
	}
	defer w.Abort()

	if err := p.c.Encoder.Encode(ctx, samples, format, w); err != nil {
		return fail(ensureKind(err, shared.ErrEncode))
	}
	if err := w.Close(); err != nil {
		return fail(fmt.Errorf("%w: %v", shared.ErrWrite, err))
	}

	phase = Tagging
	sendProgress(p.progress, stageUpdate(Tagging, d))
	tags := models.TagsFor(d)
	tags.Cover = p.cover(ctx, d, logger)
	if err := p.c.Tagger.Tag(w.TempPath(), format.Format, tags); err != nil {
		return fail(ensureKind(err, shared.ErrTag))
	}

	phase = Writing
	sendProgress(p.progress, stageUpdate(Writing, d))
	info, err := os.Stat(w.TempPath())
	if err != nil {
		return fail(fmt.Errorf("%w: %v", shared.ErrWrite, err))
	}
	if info.Size() == 0 {
		return fail(fmt.Errorf("%w: encoder produced no data", shared.ErrWrite))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := w.Commit(); err != nil {
		return fail(fmt.Errorf("%w: %v", shared.ErrWrite, err))
	}

	phase = Done
	sendProgress(p.progress, stageUpdate(Done, d))
	logger.Debug("track completed", "path", w.Path(), "bytes", info.Size())
	return models.JobResult{Track: d, Outcome: models.Completed, Path: w.Path(), Bytes: info.Size()}
}

// fetch reads the whole stream into memory, retrying transient failures.
func (p *Pipeline) fetch(ctx context.Context, d models.TrackDescriptor) ([]byte, error) {
	var raw []byte
	err := retry.Do(ctx, p.retry, retry.IsRetryable, func(ctx context.Context) error {
		stream, err := p.c.Streamer.FetchStream(ctx, d)
		if err != nil {
			return err
		}
		defer stream.Close()

		raw, err = io.ReadAll(stream)
		if err != nil {
			return ensureKind(err, shared.ErrFetch)
		}
		if len(raw) == 0 {
			return fmt.Errorf("%w: empty stream", shared.ErrFetch)
		}
		return nil
	})
	return raw, err
}

// cover fetches cover art. Failures leave the track without art.
func (p *Pipeline) cover(ctx context.Context, d models.TrackDescriptor, logger *log.Logger) []byte {
	if p.c.Art == nil || d.CoverURL == "" {
		return nil
	}
	data, err := p.c.Art.Fetch(ctx, d.CoverURL)
	if err != nil {
		logger.Warn("cover art unavailable", "url", d.CoverURL, "error", err)
		return nil
	}
	return data
}

// ensureKind wraps err in kind unless it already matches it.
func ensureKind(err, kind error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
