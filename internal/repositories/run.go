package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

const runColumns = `
	id, sequence, destination, sources, status, tracks_total,
	tracks_completed, tracks_skipped, tracks_unavailable, tracks_failed,
	bytes_written, error_message, started_at, completed_at,
	created_at, updated_at, deleted_at`

// RunRepository implements models.Repository[*models.BatchRun] for the run log.
//
// A run row is created when a batch starts and updated once with its final counts.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run into the database with generated ID and sequence
func (r *RunRepository) Create(run *models.BatchRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	run.SetID(id)
	run.SetSequence(sequence)

	query := `
		INSERT INTO runs (
			id, sequence, destination, sources, status, tracks_total,
			tracks_completed, tracks_skipped, tracks_unavailable, tracks_failed,
			bytes_written, error_message, started_at, completed_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.Destination(),
		strings.Join(run.Sources(), "\n"),
		string(run.Status()),
		run.TracksTotal(),
		run.TracksCompleted(),
		run.TracksSkipped(),
		run.TracksUnavailable(),
		run.TracksFailed(),
		run.BytesWritten(),
		nullable(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.BatchRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`

	run, err := r.scan(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	return run, err
}

// Latest returns the most recent run for a destination folder.
func (r *RunRepository) Latest(destination string) (*models.BatchRun, error) {
	runs, err := r.List(map[string]any{"destination": destination, "limit": 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run not found")
	}
	return runs[0], nil
}

// Update writes the run's status, counts, and completion time
func (r *RunRepository) Update(run *models.BatchRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET status = ?, tracks_total = ?, tracks_completed = ?, tracks_skipped = ?,
			tracks_unavailable = ?, tracks_failed = ?, bytes_written = ?,
			error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(run.Status()),
		run.TracksTotal(),
		run.TracksCompleted(),
		run.TracksSkipped(),
		run.TracksUnavailable(),
		run.TracksFailed(),
		run.BytesWritten(),
		nullable(run.ErrorMessage()),
		run.CompletedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return expectOneRow(result, "run", run.ID())
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return expectOneRow(result, "run", id)
}

// List retrieves runs newest first, excluding soft-deleted runs
//
// Supported criteria: "destination" (string), "status" (string), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.BatchRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`
	args := []any{}

	if destination, ok := criteria["destination"].(string); ok && destination != "" {
		query += " AND destination = ?"
		args = append(args, destination)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.BatchRun
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) scan(row scanner) (*models.BatchRun, error) {
	var (
		id                string
		sequence          int
		destination       string
		sources           string
		status            string
		tracksTotal       int
		tracksCompleted   int
		tracksSkipped     int
		tracksUnavailable int
		tracksFailed      int
		bytesWritten      int64
		errorMessage      sql.NullString
		startedAt         time.Time
		completedAt       sql.NullTime
		createdAt         time.Time
		updatedAt         time.Time
		deletedAt         sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &destination, &sources, &status, &tracksTotal,
		&tracksCompleted, &tracksSkipped, &tracksUnavailable, &tracksFailed,
		&bytesWritten, &errorMessage, &startedAt, &completedAt,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	var sourceList []string
	if sources != "" {
		sourceList = strings.Split(sources, "\n")
	}

	run := models.NewBatchRun(sequence, destination, sourceList)
	run.SetID(id)
	run.SetStatus(models.RunStatus(status))
	run.SetTracksTotal(tracksTotal)
	run.SetTracksCompleted(tracksCompleted)
	run.SetTracksSkipped(tracksSkipped)
	run.SetTracksUnavailable(tracksUnavailable)
	run.SetTracksFailed(tracksFailed)
	run.SetBytesWritten(bytesWritten)
	run.SetStartedAt(startedAt)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)

	if errorMessage.Valid {
		run.SetErrorMessage(errorMessage.String)
	}
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}
