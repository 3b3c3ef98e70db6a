package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotsync/internal/formatter"
	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/state"
	"github.com/desertthunder/spotsync/internal/tasks"
	"github.com/desertthunder/spotsync/internal/ui"
)

// Download runs one batch into the destination folder and prints its summary.
//
// The summary is printed whenever the batch started, including when it returns an error.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	req, err := r.buildRequest(cmd)
	if err != nil {
		return err
	}

	outFormat, err := formatter.ParseFormat(cmd.String("output"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	useTUI := cmd.Bool("tui")
	if useTUI {
		// Log lines would interfere with TUI rendering
		logPath := filepath.Join(os.TempDir(), "spotsync", "tui.log")
		fileLogger, err := shared.NewFileLogger(logPath)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}

	db, err := r.openCatalog()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	engine, err := r.engine(ctx, db, !useTUI)
	if err != nil {
		return err
	}

	r.logger.Info("starting batch",
		"destination", req.Destination,
		"format", req.Format.Format,
		"policy", req.Policy,
		"identifiers", len(req.Identifiers),
		"reset", req.Reset,
		"force", req.Force,
	)

	var summary *tasks.Summary
	if useTUI {
		summary, err = ui.Run(ctx, "spotsync → "+req.Destination, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.Summary, error) {
			return engine.Run(ctx, req, progress)
		})
	} else {
		summary, err = r.runWithProgress(ctx, engine, req, outFormat == formatter.Text)
	}

	if summary != nil {
		if outFormat == formatter.Text {
			r.writePlain("\n")
			r.writePlainHeader("Batch Summary")
		}
		data, ferr := formatter.RenderSummary(summary, outFormat)
		if ferr != nil {
			return ferr
		}
		if werr := r.write(data); werr != nil {
			return werr
		}
	}

	return err
}

// buildRequest merges flags over the [download] and [pacing] config sections.
func (r *Runner) buildRequest(cmd *cli.Command) (tasks.Request, error) {
	cfg := r.config

	dest := cmd.String("dest")
	if dest == "" {
		dest = cfg.Download.Destination
	}
	if dest == "" {
		dest = "."
	}

	formatName := cmd.String("format")
	if formatName == "" {
		formatName = cfg.Download.Format
	}
	format, err := models.ParseFormat(formatName)
	if err != nil {
		return tasks.Request{}, fmt.Errorf("%w: --format: %v", shared.ErrInvalidFlag, err)
	}

	fc := models.FormatConfig{
		Format:          format,
		FlacCompression: cfg.Download.FlacCompression,
		MP3Bitrate:      cfg.Download.MP3Bitrate,
	}
	if cmd.IsSet("flac-compression") {
		fc.FlacCompression = int(cmd.Int("flac-compression"))
	}
	if cmd.IsSet("bitrate") {
		fc.MP3Bitrate = int(cmd.Int("bitrate"))
	}

	workers := cfg.Download.Workers
	if cmd.IsSet("turbo") {
		workers = int(cmd.Int("turbo"))
	}
	if workers < 0 {
		return tasks.Request{}, fmt.Errorf("%w: --turbo must be positive, got %d", shared.ErrInvalidFlag, workers)
	}

	policy := models.Serial(cfg.Pacing.BaseDelay.Duration, cfg.Pacing.Jitter.Duration, cfg.Pacing.DurationFraction)
	if workers > 1 {
		policy = models.Parallel(workers)
	}

	reset := state.ResetNone
	if s := cmd.String("reset"); s != "" {
		if reset, err = state.ParseResetScope(s); err != nil {
			return tasks.Request{}, fmt.Errorf("%w: --reset: %v", shared.ErrInvalidFlag, err)
		}
	}

	return tasks.Request{
		Identifiers: cmd.Args().Slice(),
		Destination: dest,
		Format:      fc.Normalize(),
		Policy:      policy,
		Reset:       reset,
		Force:       cmd.Bool("force") || cfg.Download.Force,
	}, nil
}

// runWithProgress runs the engine, printing progress lines when show is set.
func (r *Runner) runWithProgress(ctx context.Context, engine *tasks.DownloadEngine, req tasks.Request, show bool) (*tasks.Summary, error) {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			if show {
				r.printProgress(update)
			} else {
				r.logger.Debug(update.Message, "phase", update.Phase)
			}
		}
	}()

	summary, err := engine.Run(ctx, req, progress)
	close(progress)
	<-done

	return summary, err
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	if _, ok := update.Data.(models.JobResult); ok {
		r.writePlain("   %s\n", update.Message)
		return
	}

	switch update.Phase {
	case tasks.Resolving:
		r.writePlain("🔍 %s\n", update.Message)
	case tasks.Filtering:
		r.writePlain("\n📋 %s\n", update.Message)
	case tasks.Waiting:
		r.writePlain("⏳ %s\n", update.Message)
	case tasks.Summarizing:
	default:
		r.logger.Debug(update.Message, "track", update.TrackID, "phase", update.Phase)
	}
}
