// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
)

// TrackID returns a valid 22 character remote ID for n.
func TrackID(n int) string {
	return fmt.Sprintf("track%017d", n)
}

// Descriptor builds a track descriptor with a one minute duration.
func Descriptor(n int, title string, artists ...string) models.TrackDescriptor {
	if len(artists) == 0 {
		artists = []string{"Artist"}
	}
	return models.TrackDescriptor{
		ID:         TrackID(n),
		Kind:       models.KindTrack,
		Title:      title,
		Artists:    artists,
		Album:      "Album",
		DurationMS: 60000,
	}
}

// Gauge tracks how many callers are inside a section at once.
type Gauge struct {
	mu     sync.Mutex
	active int
	peak   int
}

func (g *Gauge) Enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active++
	g.peak = max(g.peak, g.active)
}

func (g *Gauge) Leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
}

// Peak returns the highest concurrent count seen.
func (g *Gauge) Peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

// MockStreamer is a test double for [services.Streamer].
//
// Streams default to a payload derived from the track ID. Errors are returned once per entry
// in order, so a slice of one transient error followed by nil simulates a retried fetch.
type MockStreamer struct {
	AuthErr error
	Errors  map[string][]error
	Streams map[string][]byte
	Delay   time.Duration

	// Block makes FetchStream wait for the context to end for the given IDs.
	Block map[string]bool

	// OnFetch runs before each fetch returns.
	OnFetch func(d models.TrackDescriptor)

	Gauge Gauge

	mu        sync.Mutex
	calls     map[string]int
	authCalls int
}

func (m *MockStreamer) Name() string { return "mock" }

func (m *MockStreamer) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	m.authCalls++
	m.mu.Unlock()
	return m.AuthErr
}

func (m *MockStreamer) FetchStream(ctx context.Context, d models.TrackDescriptor) (io.ReadCloser, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[d.ID]++
	var err error
	if queued := m.Errors[d.ID]; len(queued) > 0 {
		err = queued[0]
		m.Errors[d.ID] = queued[1:]
	}
	payload, ok := m.Streams[d.ID]
	block := m.Block[d.ID]
	m.mu.Unlock()

	if m.OnFetch != nil {
		m.OnFetch(d)
	}
	if err != nil {
		return nil, err
	}

	m.Gauge.Enter()
	if block {
		<-ctx.Done()
		m.Gauge.Leave()
		return nil, ctx.Err()
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			m.Gauge.Leave()
			return nil, ctx.Err()
		}
	}
	if !ok {
		payload = []byte("stream:" + d.ID)
	}
	return &gaugedReader{Reader: bytes.NewReader(payload), gauge: &m.Gauge}, nil
}

// Calls returns how many times id was fetched.
func (m *MockStreamer) Calls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

// TotalCalls returns the number of fetches across all tracks.
func (m *MockStreamer) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *MockStreamer) AuthCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authCalls
}

type gaugedReader struct {
	io.Reader
	gauge *Gauge
	once  sync.Once
}

func (r *gaugedReader) Close() error {
	r.once.Do(r.gauge.Leave)
	return nil
}

// MockMetadata is a test double for [services.Metadata].
//
// Unknown tracks and episodes wrap [shared.ErrTrackUnavailable], unknown containers wrap
// [shared.ErrContainerNotFound].
type MockMetadata struct {
	AuthErr   error
	Tracks    map[string]models.TrackDescriptor
	Episodes  map[string]models.TrackDescriptor
	Albums    map[string][]models.TrackDescriptor
	Playlists map[string][]models.TrackDescriptor

	mu    sync.Mutex
	calls int
}

func (m *MockMetadata) Authenticate(ctx context.Context) error { return m.AuthErr }

func (m *MockMetadata) Track(ctx context.Context, id string) (models.TrackDescriptor, error) {
	m.count()
	if d, ok := m.Tracks[id]; ok {
		return d, nil
	}
	return models.TrackDescriptor{}, fmt.Errorf("%w: track %s", shared.ErrTrackUnavailable, id)
}

func (m *MockMetadata) Episode(ctx context.Context, id string) (models.TrackDescriptor, error) {
	m.count()
	if d, ok := m.Episodes[id]; ok {
		return d, nil
	}
	return models.TrackDescriptor{}, fmt.Errorf("%w: episode %s", shared.ErrTrackUnavailable, id)
}

func (m *MockMetadata) AlbumTracks(ctx context.Context, id string) ([]models.TrackDescriptor, error) {
	m.count()
	if tracks, ok := m.Albums[id]; ok {
		return tracks, nil
	}
	return nil, fmt.Errorf("%w: album %s", shared.ErrContainerNotFound, id)
}

func (m *MockMetadata) PlaylistTracks(ctx context.Context, id string) ([]models.TrackDescriptor, error) {
	m.count()
	if tracks, ok := m.Playlists[id]; ok {
		return tracks, nil
	}
	return nil, fmt.Errorf("%w: playlist %s", shared.ErrContainerNotFound, id)
}

// Calls returns the number of lookups made.
func (m *MockMetadata) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockMetadata) count() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

// MockDecoder passes stream bytes through as samples. Streams containing "corrupt" fail to decode.
type MockDecoder struct {
	Err error
}

func (m *MockDecoder) Decode(ctx context.Context, r io.Reader) (models.Samples, error) {
	if m.Err != nil {
		return models.Samples{}, m.Err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Samples{}, err
	}
	if bytes.Contains(data, []byte("corrupt")) {
		return models.Samples{}, fmt.Errorf("%w: corrupt stream", shared.ErrDecode)
	}
	return models.Samples{Data: data, SampleRate: models.PCMSampleRate, Channels: models.PCMChannels}, nil
}

// MockEncoder writes samples unchanged and records each configuration it was given.
type MockEncoder struct {
	Err   error
	Panic bool
	Empty bool

	mu      sync.Mutex
	configs []models.FormatConfig
}

func (m *MockEncoder) Encode(ctx context.Context, s models.Samples, cfg models.FormatConfig, w io.Writer) error {
	m.mu.Lock()
	m.configs = append(m.configs, cfg)
	m.mu.Unlock()

	switch {
	case m.Panic:
		panic("encoder exploded")
	case m.Err != nil:
		return m.Err
	case m.Empty:
		return nil
	}
	_, err := w.Write(s.Data)
	return err
}

// Configs returns the configurations passed to Encode.
func (m *MockEncoder) Configs() []models.FormatConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.FormatConfig(nil), m.configs...)
}

// MockTagger records tags by path.
type MockTagger struct {
	Err error

	mu   sync.Mutex
	tags map[string]models.Tags
}

func (m *MockTagger) Tag(path string, format models.Format, tags models.Tags) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tags == nil {
		m.tags = make(map[string]models.Tags)
	}
	m.tags[path] = tags
	return nil
}

// Tagged returns every recorded set of tags.
func (m *MockTagger) Tagged() []models.Tags {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Tags, 0, len(m.tags))
	for _, t := range m.tags {
		out = append(out, t)
	}
	return out
}

// MockArtFetcher returns Data or Err for every URL.
type MockArtFetcher struct {
	Data []byte
	Err  error
}

func (m *MockArtFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Data, nil
}

// MockPrompter returns Input or Err and counts prompts.
type MockPrompter struct {
	Input string
	Err   error
	Count int
}

func (m *MockPrompter) Prompt(ctx context.Context, message string) (string, error) {
	m.Count++
	return m.Input, m.Err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

// AssertNoTempFiles fails if dir holds any in-progress download or state temp files.
func AssertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read directory %s: %v", dir, err)
	}
	for _, e := range entries {
		if name := e.Name(); strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".tmp") {
			t.Errorf("Temp file left behind: %s", name)
		}
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
