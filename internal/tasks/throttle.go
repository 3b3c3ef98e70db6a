package tasks

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

// Job is one admitted track.
type Job struct {
	Index int
	Track models.TrackDescriptor
}

// RunFunc processes one job. It must always return a result.
type RunFunc func(ctx context.Context, job Job) models.JobResult

// HistoryReader reports whether a track was completed before.
type HistoryReader interface {
	IsKnown(trackID string) bool
}

// Throttler admits jobs according to a [models.ThrottlePolicy].
type Throttler struct {
	policy   models.ThrottlePolicy
	logger   *log.Logger
	progress chan<- ProgressUpdate
	sleep    func(ctx context.Context, d time.Duration) error
	jitter   func(n time.Duration) time.Duration
}

// NewThrottler creates a throttler for policy.
func NewThrottler(policy models.ThrottlePolicy, logger *log.Logger, progress chan<- ProgressUpdate) *Throttler {
	return &Throttler{
		policy:   policy,
		logger:   shared.WithLogger(logger, "component", "throttler", "policy", policy.String()),
		progress: progress,
		sleep:    sleepContext,
		jitter:   uniformJitter,
	}
}

// Schedule runs jobs in admission order and sends every result to results.
//
// Schedule returns once all admitted jobs have finished. It does not close results. When ctx
// ends, no further jobs are admitted and ctx.Err() is returned; jobs never admitted produce no
// result.
func (t *Throttler) Schedule(ctx context.Context, jobs []Job, run RunFunc, results chan<- models.JobResult) error {
	if t.policy.IsSerial() {
		return t.serial(ctx, jobs, run, results)
	}
	return t.parallel(ctx, jobs, run, results)
}

// parallel keeps up to Workers jobs in flight. errgroup.Group.Go blocks while the limit is
// reached, so admission follows job order. A plain Group is used so one failure cancels nothing.
func (t *Throttler) parallel(ctx context.Context, jobs []Job, run RunFunc, results chan<- models.JobResult) error {
	var g errgroup.Group
	g.SetLimit(t.policy.Workers())

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results <- run(ctx, job)
			return nil
		})
	}
	g.Wait()
	return ctx.Err()
}

func (t *Throttler) serial(ctx context.Context, jobs []Job, run RunFunc, results chan<- models.JobResult) error {
	for i, job := range jobs {
		if i > 0 {
			delay := t.Delay(jobs[i-1].Track)
			t.logger.Debug("pacing", "delay", delay, "next", job.Track.ID)
			sendProgress(t.progress, waitingUpdate(job.Track, delay))
			if err := t.sleep(ctx, delay); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		results <- run(ctx, job)
	}
	return nil
}

// Delay samples the pause that follows prev in serial mode.
func (t *Throttler) Delay(prev models.TrackDescriptor) time.Duration {
	if !t.policy.IsSerial() {
		return 0
	}
	d := t.policy.BaseDelay() + time.Duration(t.policy.DurationFraction()*float64(prev.Duration()))
	if j := t.policy.Jitter(); j > 0 {
		d += t.jitter(j)
	}
	return d
}

// EstimateWallTime bounds the time needed for m tracks that each take perTrack.
//
// Parallel: ceil(m/N) x perTrack. Serial: m x (perTrack + mean delay).
func (t *Throttler) EstimateWallTime(m int, perTrack time.Duration) time.Duration {
	if m <= 0 {
		return 0
	}
	if t.policy.IsSerial() {
		return time.Duration(m) * (perTrack + t.policy.MeanDelay(perTrack))
	}
	n := t.policy.Workers()
	rounds := (m + n - 1) / n
	return time.Duration(rounds) * perTrack
}

// Filter splits descs into tracks to admit and tracks already present in dest.
//
// A track is present when a file for it exists under the current format. A track in history is
// also present when a file exists under the other format. A history entry with no file on disk is
// downloaded again. force admits everything.
func Filter(descs []models.TrackDescriptor, history HistoryReader, dest string, format models.FormatConfig, force bool) ([]models.TrackDescriptor, []models.JobResult) {
	if force {
		return descs, nil
	}

	var (
		admit   []models.TrackDescriptor
		skipped []models.JobResult
	)
	for _, d := range descs {
		path, ok := existing(dest, format.Candidates(d))
		if !ok && history != nil && history.IsKnown(d.ID) {
			path, ok = existing(dest, alternateFormat(format).Candidates(d))
		}
		if ok {
			skipped = append(skipped, models.JobResult{Track: d, Outcome: models.SkippedAlreadyPresent, Path: path})
			continue
		}
		admit = append(admit, d)
	}
	return admit, skipped
}

func existing(dest string, names []string) (string, bool) {
	for _, name := range names {
		path := filepath.Join(dest, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

func alternateFormat(cfg models.FormatConfig) models.FormatConfig {
	if cfg.Format == models.FormatFLAC {
		cfg.Format = models.FormatMP3
	} else {
		cfg.Format = models.FormatFLAC
	}
	return cfg
}

// Jobs numbers descs in order.
func Jobs(descs []models.TrackDescriptor) []Job {
	jobs := make([]Job, len(descs))
	for i, d := range descs {
		jobs[i] = Job{Index: i, Track: d}
	}
	return jobs
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// uniformJitter returns a duration in [0, n).
func uniformJitter(n time.Duration) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(n)))
}
