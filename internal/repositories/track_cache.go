package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spotsync/internal/models"
)

// TrackCacheAdapter implements tasks.TrackCacher using TrackRepository.
//
// Tracks already in the catalog are left untouched; UNIQUE violations from a
// concurrent writer are ignored.
type TrackCacheAdapter struct {
	repo *TrackRepository
}

// NewTrackCacheAdapter creates a new TrackCacheAdapter with the given repository
func NewTrackCacheAdapter(repo *TrackRepository) *TrackCacheAdapter {
	return &TrackCacheAdapter{repo: repo}
}

// CacheTracks stores every descriptor not yet in the catalog.
func (a *TrackCacheAdapter) CacheTracks(ctx context.Context, tracks []models.TrackDescriptor) error {
	for _, d := range tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.cache(d); err != nil {
			return err
		}
	}
	return nil
}

func (a *TrackCacheAdapter) cache(d models.TrackDescriptor) error {
	if existing, err := a.repo.GetByRemoteID(d.ID); err == nil && existing != nil {
		return nil
	}

	if err := a.repo.Create(models.NewPersistedTrack(0, d)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to cache track %s: %w", d.ID, err)
	}
	return nil
}
