package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
)

const (
	defaultLookupRate  = 5
	defaultLookupBurst = 5
)

// TrackCacher persists resolved descriptors for later lookups.
//
// Implemented by repositories.TrackRepository. Failures are logged and otherwise ignored.
type TrackCacher interface {
	CacheTracks(ctx context.Context, tracks []models.TrackDescriptor) error
}

// IdentifierError reports one input that could not be parsed or looked up.
type IdentifierError struct {
	Input string
	Err   error
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("%s: %v", e.Input, e.Err)
}

func (e *IdentifierError) Unwrap() error {
	return e.Err
}

// Resolution is the ordered, duplicate-free output of [Resolver.Resolve].
type Resolution struct {
	Identifiers []models.Identifier      // Inputs that resolved, in input order
	Tracks      []models.TrackDescriptor // Unique tracks in first-seen order
	Errors      []*IdentifierError       // Inputs that were skipped
	Duplicates  int                      // Tracks dropped because an earlier input already supplied them
}

// TrackIDs returns the IDs of the resolved tracks in order.
func (r *Resolution) TrackIDs() []string {
	ids := make([]string, len(r.Tracks))
	for i, t := range r.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// Resolver turns raw identifiers into track descriptors, expanding playlists and albums.
type Resolver struct {
	metadata services.Metadata
	limiter  *rate.Limiter
	cache    TrackCacher
	logger   *log.Logger
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// WithLookupRate limits metadata lookups to r per second.
func WithLookupRate(r rate.Limit, burst int) ResolverOption {
	return func(res *Resolver) { res.limiter = rate.NewLimiter(r, max(burst, 1)) }
}

// WithTrackCache stores every resolved batch in c.
func WithTrackCache(c TrackCacher) ResolverOption {
	return func(res *Resolver) { res.cache = c }
}

// NewResolver creates a resolver backed by metadata.
func NewResolver(metadata services.Metadata, logger *log.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		metadata: metadata,
		limiter:  rate.NewLimiter(rate.Limit(defaultLookupRate), defaultLookupBurst),
		logger:   shared.WithLogger(logger, "component", "resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve parses and expands raws.
//
// Malformed or missing inputs are collected in [Resolution.Errors] and do not stop the batch.
// Returns [shared.ErrNoValidIdentifiers] when no input resolved, and aborts on authentication
// failures or cancellation.
func (r *Resolver) Resolve(ctx context.Context, raws []string, progress chan<- ProgressUpdate) (*Resolution, error) {
	res := &Resolution{}
	seen := make(map[string]struct{})

	for i, raw := range raws {
		sendProgress(progress, resolvingUpdate(i+1, len(raws), raw))

		id, err := models.ParseIdentifier(raw)
		if err != nil {
			r.logger.Warn("skipping identifier", "input", raw, "error", err)
			res.Errors = append(res.Errors, &IdentifierError{Input: raw, Err: err})
			continue
		}

		tracks, err := r.lookup(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) || ctx.Err() != nil {
				return res, err
			}
			r.logger.Warn("lookup failed", "identifier", id, "error", err)
			res.Errors = append(res.Errors, &IdentifierError{Input: raw, Err: err})
			continue
		}
		res.Identifiers = append(res.Identifiers, id)

		for _, t := range tracks {
			if _, dup := seen[t.ID]; dup {
				res.Duplicates++
				continue
			}
			seen[t.ID] = struct{}{}
			if id.Kind.IsContainer() {
				t.Container = id.URI()
			}
			t.Position = len(res.Tracks)
			res.Tracks = append(res.Tracks, t)
		}
		r.logger.Debug("resolved identifier", "identifier", id, "tracks", len(tracks))
	}

	if len(res.Identifiers) == 0 {
		return res, fmt.Errorf("%w: %d inputs rejected", shared.ErrNoValidIdentifiers, len(res.Errors))
	}

	models.DisambiguateFileStems(res.Tracks)

	if r.cache != nil && len(res.Tracks) > 0 {
		if err := r.cache.CacheTracks(ctx, res.Tracks); err != nil {
			r.logger.Debug("track cache write failed", "error", err)
		}
	}
	return res, nil
}

func (r *Resolver) lookup(ctx context.Context, id models.Identifier) ([]models.TrackDescriptor, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	switch id.Kind {
	case models.KindTrack:
		d, err := r.metadata.Track(ctx, id.ID)
		if err != nil {
			return nil, err
		}
		return []models.TrackDescriptor{d}, nil
	case models.KindEpisode:
		d, err := r.metadata.Episode(ctx, id.ID)
		if err != nil {
			return nil, err
		}
		return []models.TrackDescriptor{d}, nil
	case models.KindAlbum:
		return r.metadata.AlbumTracks(ctx, id.ID)
	case models.KindPlaylist:
		return r.metadata.PlaylistTracks(ctx, id.ID)
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", shared.ErrInvalidIdentifier, id.Kind)
	}
}
