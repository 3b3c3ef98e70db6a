package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Stream      StreamConfig      `toml:"stream"`
	Download    DownloadConfig    `toml:"download"`
	Pacing      PacingConfig      `toml:"pacing"`
	Database    DatabaseConfig    `toml:"database"`
	Tools       ToolsConfig       `toml:"tools"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify Web API client credentials used for metadata lookups.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// StreamConfig contains settings for the audio stream proxy.
type StreamConfig struct {
	ProxyURL string   `toml:"proxy_url"`
	Token    string   `toml:"token"`
	Timeout  Duration `toml:"timeout"`
	Retries  int      `toml:"retries"`
}

// DownloadConfig contains defaults for the download command, overridable by flags.
type DownloadConfig struct {
	Destination     string `toml:"destination"`
	Format          string `toml:"format"`
	FlacCompression int    `toml:"flac_compression"`
	MP3Bitrate      int    `toml:"mp3_bitrate"`
	Workers         int    `toml:"workers"`
	Force           bool   `toml:"force"`
}

// PacingConfig controls the delay between tracks in serial mode.
type PacingConfig struct {
	BaseDelay        Duration `toml:"base_delay"`
	Jitter           Duration `toml:"jitter"`
	DurationFraction float64  `toml:"duration_fraction"`
	LookupsPerSecond float64  `toml:"lookups_per_second"`
}

// DatabaseConfig contains catalog database connection settings.
//
// An empty path disables the catalog.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ToolsConfig contains paths to external programs.
type ToolsConfig struct {
	FFmpeg string `toml:"ffmpeg"`
}

// Duration wraps [time.Duration] so it can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values absent from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
