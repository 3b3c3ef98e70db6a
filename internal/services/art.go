package services

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/spotsync/internal/shared"
)

const maxCoverBytes = 10 << 20

// CoverArtService downloads cover images over HTTP.
type CoverArtService struct {
	httpClient *http.Client
}

// NewCoverArtService creates a cover fetcher using client, or [http.DefaultClient] when nil.
func NewCoverArtService(client *http.Client) *CoverArtService {
	if client == nil {
		client = http.DefaultClient
	}
	return &CoverArtService{httpClient: client}
}

// Fetch downloads the image at url. Images larger than 10MiB are rejected.
func (c *CoverArtService) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty cover url", shared.ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: cover request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: cover status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read cover: %w", err)
	}
	if len(data) > maxCoverBytes {
		return nil, fmt.Errorf("%w: cover exceeds %d bytes", shared.ErrInvalidInput, maxCoverBytes)
	}
	return data, nil
}
