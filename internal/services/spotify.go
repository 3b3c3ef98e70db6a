// Spotify Web API implementation of [Metadata]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

const playlistPageSize = 100

// SpotifyService implements [Metadata] on top of the Spotify Web API.
//
// Authenticates with the client credentials flow, so only public catalog data is reachable.
type SpotifyService struct {
	config *clientcredentials.Config
	client *spotify.Client
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*spotifyOptions)

type spotifyOptions struct {
	baseURL    string
	tokenURL   string
	httpClient *http.Client
}

// WithSpotifyBaseURL points the client at an alternate API root (must end in "/").
func WithSpotifyBaseURL(url string) SpotifyOption {
	return func(o *spotifyOptions) { o.baseURL = url }
}

// WithTokenURL overrides the accounts token endpoint.
func WithTokenURL(url string) SpotifyOption {
	return func(o *spotifyOptions) { o.tokenURL = url }
}

// WithHTTPClient sets the transport used for token and API requests.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(o *spotifyOptions) { o.httpClient = c }
}

// NewSpotifyService creates a metadata client for the given application credentials.
func NewSpotifyService(ctx context.Context, clientID, clientSecret string, opts ...SpotifyOption) (*SpotifyService, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret", shared.ErrMissingCredentials)
	}

	o := spotifyOptions{tokenURL: spotifyauth.TokenURL}
	for _, opt := range opts {
		opt(&o)
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     o.tokenURL,
	}

	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}

	clientOpts := []spotify.ClientOption{spotify.WithRetry(true)}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(o.baseURL))
	}

	return &SpotifyService{
		config: config,
		client: spotify.New(config.Client(ctx), clientOpts...),
	}, nil
}

// Name returns the service name.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Authenticate fetches an application token to confirm the credentials are valid.
func (s *SpotifyService) Authenticate(ctx context.Context) error {
	if _, err := s.config.Token(ctx); err != nil {
		return fmt.Errorf("%w: spotify: %v", shared.ErrAuthFailed, err)
	}
	return nil
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, id string) (models.TrackDescriptor, error) {
	t, err := s.client.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return models.TrackDescriptor{}, mapSpotifyError(err, shared.ErrTrackUnavailable)
	}
	return fromFullTrack(t), nil
}

// Episode retrieves a single podcast episode by ID.
func (s *SpotifyService) Episode(ctx context.Context, id string) (models.TrackDescriptor, error) {
	e, err := s.client.GetEpisode(ctx, id)
	if err != nil {
		return models.TrackDescriptor{}, mapSpotifyError(err, shared.ErrTrackUnavailable)
	}
	return fromEpisode(e), nil
}

// AlbumTracks retrieves every track on an album in album order.
func (s *SpotifyService) AlbumTracks(ctx context.Context, id string) ([]models.TrackDescriptor, error) {
	album, err := s.client.GetAlbum(ctx, spotify.ID(id))
	if err != nil {
		return nil, mapSpotifyError(err, shared.ErrContainerNotFound)
	}

	page := &album.Tracks
	total := int(page.Total)
	cover := largestImage(album.Images)

	var tracks []models.TrackDescriptor
	for {
		for _, t := range page.Tracks {
			tracks = append(tracks, models.TrackDescriptor{
				ID:          t.ID.String(),
				Kind:        models.KindTrack,
				Title:       t.Name,
				Artists:     artistNames(t.Artists),
				Album:       album.Name,
				TrackNumber: int(t.TrackNumber),
				AlbumTracks: total,
				DurationMS:  int(t.Duration),
				CoverURL:    cover,
			})
		}

		err = s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, mapSpotifyError(err, shared.ErrContainerNotFound)
		}
	}

	return tracks, nil
}

// PlaylistTracks retrieves every playable item of a playlist in playlist order.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, id string) ([]models.TrackDescriptor, error) {
	page, err := s.client.GetPlaylistItems(ctx, spotify.ID(id), spotify.Limit(playlistPageSize))
	if err != nil {
		return nil, mapSpotifyError(err, shared.ErrContainerNotFound)
	}

	var tracks []models.TrackDescriptor
	for {
		for _, item := range page.Items {
			if item.IsLocal {
				continue
			}
			switch {
			case item.Track.Track != nil && item.Track.Track.ID != "":
				tracks = append(tracks, fromFullTrack(item.Track.Track))
			case item.Track.Episode != nil && item.Track.Episode.ID != "":
				tracks = append(tracks, fromEpisode(item.Track.Episode))
			}
		}

		err = s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, mapSpotifyError(err, shared.ErrContainerNotFound)
		}
	}

	return tracks, nil
}

func fromFullTrack(t *spotify.FullTrack) models.TrackDescriptor {
	return models.TrackDescriptor{
		ID:          t.ID.String(),
		Kind:        models.KindTrack,
		Title:       t.Name,
		Artists:     artistNames(t.Artists),
		Album:       t.Album.Name,
		TrackNumber: int(t.TrackNumber),
		AlbumTracks: int(t.Album.TotalTracks),
		DurationMS:  int(t.Duration),
		CoverURL:    largestImage(t.Album.Images),
	}
}

func fromEpisode(e *spotify.EpisodePage) models.TrackDescriptor {
	var artists []string
	if e.Show.Name != "" {
		artists = []string{e.Show.Name}
	}
	return models.TrackDescriptor{
		ID:         e.ID.String(),
		Kind:       models.KindEpisode,
		Title:      e.Name,
		Artists:    artists,
		Album:      e.Show.Name,
		DurationMS: int(e.Duration_ms),
		CoverURL:   largestImage(e.Images),
	}
}

func artistNames(artists []spotify.SimpleArtist) []string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return names
}

// largestImage picks the widest image; the API usually lists it first but does not promise to.
func largestImage(images []spotify.Image) string {
	best, width := "", -1
	for _, img := range images {
		if int(img.Width) > width {
			best, width = img.URL, int(img.Width)
		}
	}
	return best
}

// mapSpotifyError converts API errors to sentinels. notFound is used for 404 responses.
func mapSpotifyError(err error, notFound error) error {
	status := 0
	var apiErr spotify.Error
	var apiErrPtr *spotify.Error
	var tokenErr *oauth2.RetrieveError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
	case errors.As(err, &apiErrPtr):
		status = apiErrPtr.Status
	case errors.As(err, &tokenErr):
		return fmt.Errorf("%w: spotify token: %v", shared.ErrAuthFailed, err)
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify: %v", shared.ErrAuthFailed, err)
	case http.StatusNotFound, http.StatusBadRequest:
		return fmt.Errorf("%w: %v", notFound, err)
	case 0:
		return fmt.Errorf("%w: spotify: %v", shared.ErrServiceUnavailable, err)
	default:
		return fmt.Errorf("%w: spotify status %d: %v", shared.ErrAPIRequest, status, err)
	}
}
