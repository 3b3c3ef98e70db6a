package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotsync/internal/formatter"
	"github.com/desertthunder/spotsync/internal/repositories"
	"github.com/desertthunder/spotsync/internal/shared"
)

// RunsList prints recent batch runs from the catalog.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	outFormat, err := formatter.ParseFormat(cmd.String("output"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	db, err := r.openCatalog()
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("%w: database.path is not set, the run log is disabled", shared.ErrMissingConfig)
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(map[string]any{
		"destination": cmd.String("destination"),
		"status":      cmd.String("status"),
		"limit":       int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	data, err := formatter.RenderRuns(runs, outFormat)
	if err != nil {
		return err
	}
	return r.write(data)
}
