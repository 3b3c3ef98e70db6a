// Stream proxy [Streamer] implementation
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

const (
	defaultStreamBaseURL = "http://127.0.0.1:8898"
	defaultStreamTimeout = 30 * time.Second
)

// StreamService fetches audio streams from the local stream proxy.
type StreamService struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewStreamService creates a stream proxy client.
//
// timeout bounds how long a stream may go without producing bytes; zero selects 30s.
func NewStreamService(baseURL, token string, timeout time.Duration, client *http.Client) *StreamService {
	if baseURL == "" {
		baseURL = defaultStreamBaseURL
	}
	if timeout <= 0 {
		timeout = defaultStreamTimeout
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &StreamService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		timeout:    timeout,
		httpClient: client,
	}
}

// Name returns the service name.
func (s *StreamService) Name() string {
	return "stream proxy"
}

// Authenticate checks that the proxy accepts the configured token.
//
// Calls GET /api/session on the proxy.
func (s *StreamService) Authenticate(ctx context.Context) error {
	if s.token == "" {
		return fmt.Errorf("%w: stream token", shared.ErrMissingCredentials)
	}

	resp, err := s.do(ctx, "/api/session")
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// FetchStream opens the compressed audio stream for the descriptor.
//
// Calls GET /api/stream/{kind}/{id} on the proxy. The returned reader fails with
// [shared.ErrStreamTimeout] if no bytes arrive within the configured timeout.
func (s *StreamService) FetchStream(ctx context.Context, d models.TrackDescriptor) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	var fired atomic.Bool
	timer := time.AfterFunc(s.timeout, func() {
		fired.Store(true)
		cancel()
	})

	path := fmt.Sprintf("/api/stream/%s/%s", d.Kind, url.PathEscape(d.ID))
	resp, err := s.do(ctx, path)
	if err != nil {
		timer.Stop()
		cancel()
		if fired.Load() {
			return nil, fmt.Errorf("%w: no response after %s", shared.ErrStreamTimeout, s.timeout)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrFetch, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		timer.Stop()
		cancel()
		return nil, statusError(resp)
	}

	return &idleTimeoutReader{
		rc:      resp.Body,
		timeout: s.timeout,
		timer:   timer,
		fired:   &fired,
		cancel:  cancel,
	}, nil
}

func (s *StreamService) do(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// statusError maps a non-2xx proxy response to a sentinel error.
func statusError(resp *http.Response) error {
	var errResp struct {
		Detail string `json:"detail"`
	}
	detail := fmt.Sprintf("status %d", resp.StatusCode)
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&errResp); err == nil && errResp.Detail != "" {
		detail = fmt.Sprintf("status %d: %s", resp.StatusCode, errResp.Detail)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, detail)
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusUnavailableForLegalReasons:
		return fmt.Errorf("%w: %s", shared.ErrTrackUnavailable, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, detail)
	default:
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, detail)
	}
}

// idleTimeoutReader cancels the underlying request when a read has been waiting longer than timeout.
type idleTimeoutReader struct {
	rc      io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	fired   *atomic.Bool
	cancel  context.CancelFunc
}

func (r *idleTimeoutReader) Read(p []byte) (int, error) {
	r.timer.Reset(r.timeout)
	n, err := r.rc.Read(p)
	if err != nil && err != io.EOF && r.fired.Load() {
		return n, fmt.Errorf("%w: no data for %s", shared.ErrStreamTimeout, r.timeout)
	}
	return n, err
}

func (r *idleTimeoutReader) Close() error {
	r.timer.Stop()
	r.cancel()
	return r.rc.Close()
}
