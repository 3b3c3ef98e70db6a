package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/desertthunder/spotsync/internal/repositories"
	"github.com/desertthunder/spotsync/internal/retry"
	"github.com/desertthunder/spotsync/internal/services"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/tasks"
)

const version = "0.1.0"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil in [RunnerOpts] are built from the loaded configuration when a
// command first needs them.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	httpClient *http.Client

	metadata services.Metadata
	streamer services.Streamer
	decoder  services.Decoder
	encoder  services.Encoder
	tagger   services.Tagger
	art      services.ArtFetcher
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	HTTPClient *http.Client

	Metadata services.Metadata
	Streamer services.Streamer
	Decoder  services.Decoder
	Encoder  services.Encoder
	Tagger   services.Tagger
	Art      services.ArtFetcher
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		httpClient: opts.HTTPClient,
		metadata:   opts.Metadata,
		streamer:   opts.Streamer,
		decoder:    opts.Decoder,
		encoder:    opts.Encoder,
		tagger:     opts.Tagger,
		art:        opts.Art,
	}
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "spotsync",
		Usage:   "Download and keep folders in sync with Spotify tracks, albums, playlists and episodes",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Log warnings and errors only",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		downloadCommand, historyCommand, runsCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration and applies the log level for every command.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	switch {
	case cmd.Bool("verbose"):
		shared.SetLogLevel(r.logger, log.DebugLevel)
	case cmd.Bool("quiet"):
		shared.SetLogLevel(r.logger, log.WarnLevel)
	}

	if r.config != nil {
		return ctx, nil
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	// setup creates the file --config points at, so it may not exist yet
	required := cmd.IsSet("config") && cmd.Args().First() != "setup"
	config, err := r.loadConfig(required)
	if err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

// loadConfig reads the config file, falling back to defaults when it does not exist.
// An explicitly requested file must exist.
func (r *Runner) loadConfig(required bool) (*shared.Config, error) {
	if r.configPath == "" {
		return shared.DefaultConfig(), nil
	}

	if _, err := os.Stat(r.configPath); err != nil {
		if required {
			return nil, fmt.Errorf("%w: %s", shared.ErrMissingConfig, r.configPath)
		}
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		return shared.DefaultConfig(), nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("loaded config", "path", r.configPath)
	return config, nil
}

// SetLogger replaces the logger, e.g. to keep log lines off a terminal owned by the TUI.
func (r *Runner) SetLogger(l *log.Logger) {
	l.SetLevel(r.logger.GetLevel())
	r.logger = l
}

// openCatalog opens the catalog database when one is configured. A nil *sql.DB means disabled.
func (r *Runner) openCatalog() (*sql.DB, error) {
	path := r.config.Database.Path
	if path == "" {
		return nil, nil
	}

	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// collaborators returns the injected collaborators, building the real ones from config where unset.
func (r *Runner) collaborators(ctx context.Context) (services.Metadata, tasks.Collaborators, error) {
	cfg := r.config

	metadata := r.metadata
	if metadata == nil {
		svc, err := services.NewSpotifyService(ctx,
			cfg.Credentials.Spotify.ClientID,
			cfg.Credentials.Spotify.ClientSecret,
			services.WithHTTPClient(r.httpClient),
		)
		if err != nil {
			return nil, tasks.Collaborators{}, err
		}
		metadata = svc
	}

	c := tasks.Collaborators{
		Streamer: r.streamer,
		Decoder:  r.decoder,
		Encoder:  r.encoder,
		Tagger:   r.tagger,
		Art:      r.art,
	}
	if c.Streamer == nil {
		if cfg.Stream.ProxyURL == "" {
			return nil, tasks.Collaborators{}, fmt.Errorf("%w: stream.proxy_url", shared.ErrMissingConfig)
		}
		c.Streamer = services.NewStreamService(cfg.Stream.ProxyURL, cfg.Stream.Token, cfg.Stream.Timeout.Duration, r.httpClient)
	}
	if c.Decoder == nil || c.Encoder == nil {
		ffmpeg := services.NewFFmpeg(cfg.Tools.FFmpeg)
		if !ffmpeg.Available() {
			return nil, tasks.Collaborators{}, fmt.Errorf("%w: ffmpeg not found at %q (set tools.ffmpeg)", shared.ErrMissingConfig, cfg.Tools.FFmpeg)
		}
		if c.Decoder == nil {
			c.Decoder = ffmpeg
		}
		if c.Encoder == nil {
			c.Encoder = ffmpeg
		}
	}
	if c.Tagger == nil {
		c.Tagger = services.NewFileTagger()
	}
	if c.Art == nil {
		c.Art = services.NewCoverArtService(r.httpClient)
	}
	return metadata, c, nil
}

// engine wires a DownloadEngine from config. db may be nil when the catalog is disabled.
// Without interactive the engine cannot ask for links and fails when none are stored.
func (r *Runner) engine(ctx context.Context, db *sql.DB, interactive bool) (*tasks.DownloadEngine, error) {
	metadata, collab, err := r.collaborators(ctx)
	if err != nil {
		return nil, err
	}

	fetchRetry := retry.DefaultConfig()
	if n := r.config.Stream.Retries; n >= 0 {
		fetchRetry.MaxRetries = n
	}

	opts := []tasks.EngineOption{tasks.WithFetchRetry(fetchRetry)}
	if interactive {
		opts = append(opts, tasks.WithPrompter(services.NewLinePrompter(r.input, r.output)))
	}
	if lps := r.config.Pacing.LookupsPerSecond; lps > 0 {
		opts = append(opts, tasks.WithMetadataRate(rate.Limit(lps)))
	}
	if db != nil {
		opts = append(opts,
			tasks.WithRunLog(repositories.NewRunRepository(db)),
			tasks.WithCatalog(repositories.NewTrackCacheAdapter(repositories.NewTrackRepository(db))),
		)
	}

	return tasks.NewDownloadEngine(metadata, collab, r.logger, opts...), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) write(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	return r.write(fmt.Appendf(nil, format, args...))
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
