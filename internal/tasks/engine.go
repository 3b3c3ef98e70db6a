package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/retry"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/state"
)

const promptMessage = "Enter a Spotify track, album, playlist or episode link: "

// RunLog stores one row per batch. Implemented by repositories.RunRepository.
type RunLog interface {
	Create(run *models.BatchRun) error
	Update(run *models.BatchRun) error
}

// Request describes one batch invocation.
type Request struct {
	Identifiers []string            // Raw identifiers; empty reuses stored sources or prompts
	Destination string              // Output folder, created if missing
	Format      models.FormatConfig // Output format
	Policy      models.ThrottlePolicy
	Reset       state.ResetScope // Cleared before resolution
	Force       bool             // Download even when already present
}

// DownloadEngine runs batches: reset, sources, authenticate, resolve, membership, filter,
// schedule, aggregate and run log, in that order.
type DownloadEngine struct {
	metadata services.Metadata
	collab   Collaborators
	prompter services.Prompter
	runs     RunLog
	cache    TrackCacher
	retry    retry.Config
	lookup   rate.Limit
	logger   *log.Logger

	// throttle hooks let tests replace pacing sleeps.
	sleep func(ctx context.Context, d time.Duration) error
}

// EngineOption configures a [DownloadEngine].
type EngineOption func(*DownloadEngine)

// WithPrompter asks p for an identifier when none are given or stored.
func WithPrompter(p services.Prompter) EngineOption {
	return func(e *DownloadEngine) { e.prompter = p }
}

// WithRunLog records each batch in runs.
func WithRunLog(runs RunLog) EngineOption {
	return func(e *DownloadEngine) { e.runs = runs }
}

// WithCatalog caches resolved descriptors in c.
func WithCatalog(c TrackCacher) EngineOption {
	return func(e *DownloadEngine) { e.cache = c }
}

// WithFetchRetry sets the stream fetch backoff.
func WithFetchRetry(cfg retry.Config) EngineOption {
	return func(e *DownloadEngine) { e.retry = cfg }
}

// WithMetadataRate limits metadata lookups to r per second.
func WithMetadataRate(r rate.Limit) EngineOption {
	return func(e *DownloadEngine) { e.lookup = r }
}

// NewDownloadEngine creates an engine over the given collaborators.
func NewDownloadEngine(metadata services.Metadata, collab Collaborators, logger *log.Logger, opts ...EngineOption) *DownloadEngine {
	e := &DownloadEngine{
		metadata: metadata,
		collab:   collab,
		retry:    retry.DefaultConfig(),
		lookup:   rate.Limit(defaultLookupRate),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one batch and returns its summary.
//
// Per-track problems are reported in the summary. The returned error is set only when the batch
// could not start (locked state, no identifiers, authentication), when interrupted, or when
// tracks were admitted and none completed ([shared.ErrNoTracksCompleted]). The summary is
// non-nil whenever the destination could be opened.
func (e *DownloadEngine) Run(ctx context.Context, req Request, progress chan<- ProgressUpdate) (*Summary, error) {
	start := time.Now()
	format := req.Format.Normalize()
	logger := shared.WithLogger(e.logger, "destination", req.Destination)

	store, err := state.Open(req.Destination)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	removeStale(req.Destination, logger)

	summary := &Summary{Destination: req.Destination, Format: format.Format, Policy: req.Policy.String()}
	defer func() { summary.Elapsed = time.Since(start) }()

	if err := store.Recovered(); err != nil {
		logger.Warn("sync state unreadable, starting fresh", "error", err)
		summary.Warn("sync state was unreadable and has been reset")
	}

	if req.Reset != state.ResetNone {
		logger.Info("resetting sync state", "scope", req.Reset)
		if err := store.Reset(req.Reset); err != nil {
			logger.Warn("reset not persisted", "error", err)
			summary.Warn("reset not persisted: %v", err)
		}
	}

	raws, err := e.sources(ctx, req, store)
	if err != nil {
		return summary, err
	}

	if err := e.authenticate(ctx); err != nil {
		return summary, err
	}

	resolver := NewResolver(e.metadata, e.logger, WithLookupRate(e.lookup, defaultLookupBurst), WithTrackCache(e.cache))
	res, err := resolver.Resolve(ctx, raws, progress)
	if res != nil {
		summary.InvalidInputs = res.Errors
	}
	if err != nil {
		return summary, err
	}
	summary.Total = len(res.Tracks)
	if len(res.Tracks) == 0 {
		logger.Warn("identifiers resolved to no tracks", "identifiers", len(res.Identifiers))
		summary.Warn("%d identifiers resolved to no tracks, nothing to sync", len(res.Identifiers))
	}

	if err := store.SetSources(raws); err != nil {
		summary.Warn("sources not persisted: %v", err)
	}
	removed, err := store.SetMembership(res.TrackIDs())
	if err != nil {
		summary.Warn("membership not persisted: %v", err)
	}
	summary.Removed = removed

	admit, skipped := Filter(res.Tracks, store, req.Destination, format, req.Force)
	sendProgress(progress, filteredUpdate(len(admit), len(skipped)))
	logger.Info("batch ready", "tracks", len(res.Tracks), "admitted", len(admit), "present", len(skipped), "policy", req.Policy)

	run := e.beginRun(req.Destination, raws, len(res.Tracks), logger)

	pipeline := NewPipeline(e.collab, e.logger, WithRetry(e.retry), WithProgress(progress))
	throttler := NewThrottler(req.Policy, e.logger, progress)
	if e.sleep != nil {
		throttler.sleep = e.sleep
	}

	results := make(chan models.JobResult, req.Policy.Workers())
	var scheduleErr error
	go func() {
		defer close(results)
		for _, r := range skipped {
			results <- r
		}
		scheduleErr = throttler.Schedule(ctx, Jobs(admit), func(ctx context.Context, job Job) models.JobResult {
			return pipeline.Run(ctx, job.Track, req.Destination, format)
		}, results)
	}()

	tally := NewAggregator(store, len(res.Tracks), e.logger, progress).Consume(results)
	tally.Destination, tally.Format, tally.Policy = summary.Destination, summary.Format, summary.Policy
	tally.Removed, tally.InvalidInputs = summary.Removed, summary.InvalidInputs
	tally.Warnings = append(summary.Warnings, tally.Warnings...)
	summary = tally

	var runErr error
	switch {
	case scheduleErr != nil:
		runErr = scheduleErr
	case ctx.Err() != nil:
		runErr = ctx.Err()
	case len(admit) > 0 && summary.Completed == 0:
		runErr = fmt.Errorf("%w: %d tracks attempted", shared.ErrNoTracksCompleted, len(admit))
	}

	summary.Elapsed = time.Since(start)
	e.finishRun(run, summary, runErr, logger)
	sendProgress(progress, summaryUpdate(summary))
	logger.Info("batch finished", "summary", summary.String(), "elapsed", summary.Elapsed.Round(time.Millisecond))
	return summary, runErr
}

// sources picks the identifiers for this batch: explicit ones, then the folder's stored
// sources unless they were just reset, then the prompt.
func (e *DownloadEngine) sources(ctx context.Context, req Request, store *state.Store) ([]string, error) {
	if len(req.Identifiers) > 0 {
		return req.Identifiers, nil
	}
	if stored := store.Sources(); len(stored) > 0 {
		e.logger.Info("syncing stored sources", "count", len(stored))
		return stored, nil
	}
	if e.prompter == nil {
		return nil, fmt.Errorf("%w: no identifiers given", shared.ErrMissingArgument)
	}
	input, err := e.prompter.Prompt(ctx, promptMessage)
	if err != nil {
		return nil, err
	}
	return []string{input}, nil
}

func (e *DownloadEngine) authenticate(ctx context.Context) error {
	if err := e.metadata.Authenticate(ctx); err != nil {
		return authError("metadata", err)
	}
	if err := e.collab.Streamer.Authenticate(ctx); err != nil {
		return authError(e.collab.Streamer.Name(), err)
	}
	return nil
}

// removeStale deletes partial downloads and state writes left by a run that was killed.
// The caller must hold the folder lock, so no live writer owns them.
func removeStale(dest string, logger *log.Logger) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		part, _ := filepath.Match(partPattern, name)
		tmp, _ := filepath.Match(state.TempPattern, name)
		if e.IsDir() || !(part || tmp) {
			continue
		}
		if err := os.Remove(filepath.Join(dest, name)); err != nil {
			logger.Warn("failed to remove stale file", "file", name, "error", err)
			continue
		}
		logger.Debug("removed stale file", "file", name)
	}
}

func authError(service string, err error) error {
	if errors.Is(err, shared.ErrAuthFailed) {
		return fmt.Errorf("%s: %w", service, err)
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrAuthFailed, service, err)
}

func (e *DownloadEngine) beginRun(dest string, sources []string, total int, logger *log.Logger) *models.BatchRun {
	if e.runs == nil {
		return nil
	}
	run := models.NewBatchRun(0, dest, sources)
	run.SetTracksTotal(total)
	if err := e.runs.Create(run); err != nil {
		logger.Warn("run log unavailable", "error", err)
		return nil
	}
	return run
}

func (e *DownloadEngine) finishRun(run *models.BatchRun, s *Summary, err error, logger *log.Logger) {
	if run == nil {
		return
	}
	run.SetTracksCompleted(s.Completed)
	run.SetTracksSkipped(s.SkippedPresent)
	run.SetTracksUnavailable(s.SkippedUnavailable)
	run.SetTracksFailed(s.Failed)
	run.SetBytesWritten(s.BytesWritten)
	run.Finish(err)
	if err := e.runs.Update(run); err != nil {
		logger.Warn("run log not updated", "run", run.ID(), "error", err)
		return
	}
	s.RunID = run.ID()
}
