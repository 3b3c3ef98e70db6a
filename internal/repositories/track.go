package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

const trackColumns = `id, sequence, remote_id, kind, title, artist, album, duration_ms, created_at, updated_at, deleted_at`

// TrackRepository implements models.Repository[*models.PersistedTrack] for the metadata catalog.
//
// Rows are keyed by remote ID, so each Spotify track or episode is cached once.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.PersistedTrack] into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.PersistedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	track.SetID(id)
	track.SetSequence(sequence)

	query := `
		INSERT INTO tracks (id, sequence, remote_id, kind, title, artist, album, duration_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		track.RemoteID(),
		track.Kind().String(),
		track.Title(),
		track.Artist(),
		track.Album(),
		track.DurationMS(),
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByRemoteID retrieves a track by its Spotify ID
func (r *TrackRepository) GetByRemoteID(remoteID string) (*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE remote_id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, remoteID))
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.PersistedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	query := `
		UPDATE tracks
		SET kind = ?, title = ?, artist = ?, album = ?, duration_ms = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		track.Kind().String(),
		track.Title(),
		track.Artist(),
		track.Album(),
		track.DurationMS(),
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	return expectOneRow(result, "track", track.ID())
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE tracks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return expectOneRow(result, "track", id)
}

// List retrieves all tracks matching the given criteria, excluding soft-deleted tracks
//
// Supported criteria: "kind" (string), "artist" (string).
func (r *TrackRepository) List(criteria map[string]any) ([]*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL`
	args := []any{}

	if kind, ok := criteria["kind"].(string); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist LIKE ?"
		args = append(args, "%"+artist+"%")
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.PersistedTrack
	for rows.Next() {
		track, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// scanOne scans a single [sql.Row] into a [models.PersistedTrack]
func (r *TrackRepository) scanOne(row *sql.Row) (*models.PersistedTrack, error) {
	track, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("track not found")
	}
	return track, err
}

// scan reads one row from a [sql.Row] or [sql.Rows].
func (r *TrackRepository) scan(row scanner) (*models.PersistedTrack, error) {
	var (
		id         string
		sequence   int
		remoteID   string
		kindName   string
		title      string
		artist     string
		album      string
		durationMS int
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &remoteID, &kindName, &title, &artist, &album, &durationMS, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	kind, ok := models.ParseKind(kindName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q for track %s", shared.ErrInvalidInput, kindName, id)
	}

	track := models.NewPersistedTrack(sequence, models.TrackDescriptor{
		ID:         remoteID,
		Kind:       kind,
		Title:      title,
		Artists:    []string{artist},
		Album:      album,
		DurationMS: durationMS,
	})
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}

	return track, nil
}
