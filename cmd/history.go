package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotsync/internal/formatter"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/state"
)

// folderArg returns the first argument or the configured destination.
func (r *Runner) folderArg(cmd *cli.Command) string {
	if folder := cmd.Args().First(); folder != "" {
		return folder
	}
	if r.config.Download.Destination != "" {
		return r.config.Download.Destination
	}
	return "."
}

// HistoryShow prints the sync record of a folder.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	folder := r.folderArg(cmd)

	store, err := state.Open(folder)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Recovered(); err != nil {
		r.logger.Warn("sync state unreadable", "folder", folder, "error", err)
	}

	record := store.Record()
	if cmd.Bool("json") {
		return r.writeJSON(record, true)
	}
	return r.write(formatter.RecordToText(folder, record, cmd.Bool("all")))
}

// HistoryReset clears the requested parts of a folder's sync record.
func (r *Runner) HistoryReset(ctx context.Context, cmd *cli.Command) error {
	folder := r.folderArg(cmd)

	scope, err := state.ParseResetScope(cmd.String("scope"))
	if err != nil {
		return fmt.Errorf("%w: --scope: %v", shared.ErrInvalidFlag, err)
	}

	store, err := state.Open(folder)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Reset(scope); err != nil {
		return err
	}

	r.logger.Info("sync state reset", "folder", folder, "scope", scope)
	return r.writePlain("✓ Cleared %s for %s\n", scope, folder)
}
