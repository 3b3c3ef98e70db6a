package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotsync/internal/models"
	"github.com/desertthunder/spotsync/internal/shared"
	"github.com/desertthunder/spotsync/internal/state"
	tu "github.com/desertthunder/spotsync/internal/testing"
)

type fixture struct {
	runner   *Runner
	output   *bytes.Buffer
	metadata *tu.MockMetadata
	streamer *tu.MockStreamer
	config   *shared.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	config := shared.DefaultConfig()
	config.Pacing.BaseDelay = shared.Duration{}
	config.Pacing.Jitter = shared.Duration{}
	config.Pacing.DurationFraction = 0
	config.Pacing.LookupsPerSecond = 0

	metadata := &tu.MockMetadata{Tracks: map[string]models.TrackDescriptor{
		tu.TrackID(1): tu.Descriptor(1, "One"),
		tu.TrackID(2): tu.Descriptor(2, "Two"),
	}, Albums: map[string][]models.TrackDescriptor{
		tu.TrackID(9): {tu.Descriptor(1, "One"), tu.Descriptor(2, "Two")},
	}}
	streamer := &tu.MockStreamer{}
	output := &bytes.Buffer{}

	runner := NewRunner(RunnerOpts{
		Config:   config,
		Logger:   log.New(&bytes.Buffer{}),
		Output:   output,
		Input:    strings.NewReader(""),
		Metadata: metadata,
		Streamer: streamer,
		Decoder:  &tu.MockDecoder{},
		Encoder:  &tu.MockEncoder{},
		Tagger:   &tu.MockTagger{},
		Art:      &tu.MockArtFetcher{Data: []byte("art")},
	})

	return &fixture{runner: runner, output: output, metadata: metadata, streamer: streamer, config: config}
}

func (f *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	return f.runner.app().Run(context.Background(), append([]string{"spotsync"}, args...))
}

func trackURI(n int) string { return "spotify:track:" + tu.TrackID(n) }

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			metadata := &tu.MockMetadata{}
			streamer := &tu.MockStreamer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Metadata:   metadata,
				Streamer:   streamer,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.metadata != metadata {
				t.Error("expected metadata to be set")
			}
			if runner.streamer != streamer {
				t.Error("expected streamer to be set")
			}
		})

		t.Run("with nil dependencies uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected default output to be os.Stdout")
			}
			if runner.input != os.Stdin {
				t.Error("expected default input to be os.Stdin")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected default HTTP client")
			}
			if runner.config != nil {
				t.Error("config should load lazily in before")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		tc := []struct {
			name     string
			pretty   bool
			expected string
		}{
			{name: "compact", pretty: false, expected: "{\"a\":1}\n"},
			{name: "pretty", pretty: true, expected: "{\n  \"a\": 1\n}\n"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				output := &bytes.Buffer{}
				runner := NewRunner(RunnerOpts{Output: output})

				if err := runner.writeJSON(map[string]int{"a": 1}, tt.pretty); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if output.String() != tt.expected {
					t.Errorf("expected %q, got %q", tt.expected, output.String())
				}
			})
		}

		t.Run("write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writeJSON(map[string]int{"a": 1}, false); err == nil {
				t.Error("expected error from failing writer")
			}
		})
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing optional file uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: filepath.Join(t.TempDir(), "none.toml"), Logger: log.New(&bytes.Buffer{})})
			config, err := runner.loadConfig(false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if config.Download.Format != "mp3" {
				t.Errorf("expected default format mp3, got %q", config.Download.Format)
			}
		})

		t.Run("missing required file fails", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: filepath.Join(t.TempDir(), "none.toml"), Logger: log.New(&bytes.Buffer{})})
			if _, err := runner.loadConfig(true); !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})
	})
}

func TestBuildRequest(t *testing.T) {
	tc := []struct {
		name    string
		args    []string
		check   func(t *testing.T, f *fixture, got requestView)
		wantErr error
	}{
		{
			name: "config defaults",
			args: []string{trackURI(1)},
			check: func(t *testing.T, f *fixture, got requestView) {
				if got.Destination != "." || got.Format != models.FormatMP3 || got.Bitrate != 320 {
					t.Errorf("unexpected defaults %+v", got)
				}
				if got.Workers != 1 || got.Force || got.Reset != state.ResetNone {
					t.Errorf("expected serial, unforced, no reset: %+v", got)
				}
				if len(got.Identifiers) != 1 || got.Identifiers[0] != trackURI(1) {
					t.Errorf("unexpected identifiers %v", got.Identifiers)
				}
			},
		},
		{
			name: "flags override config",
			args: []string{"-d", "music", "-f", "flac", "--flac-compression", "8", "-t", "4", "-F", "-r", "history", "a", "b"},
			check: func(t *testing.T, f *fixture, got requestView) {
				if got.Destination != "music" || got.Format != models.FormatFLAC || got.Compression != 8 {
					t.Errorf("unexpected format settings %+v", got)
				}
				if got.Workers != 4 || !got.Force || got.Reset != state.ResetHistory {
					t.Errorf("unexpected policy settings %+v", got)
				}
				if len(got.Identifiers) != 2 {
					t.Errorf("expected 2 identifiers, got %v", got.Identifiers)
				}
			},
		},
		{
			name: "compression clamped",
			args: []string{"-f", "flac", "--flac-compression", "42"},
			check: func(t *testing.T, f *fixture, got requestView) {
				if got.Compression != models.MaxFlacCompression {
					t.Errorf("expected clamped compression, got %d", got.Compression)
				}
			},
		},
		{name: "unknown format", args: []string{"-f", "ogg"}, wantErr: shared.ErrInvalidFlag},
		{name: "negative turbo", args: []string{"--turbo=-2"}, wantErr: shared.ErrInvalidFlag},
		{name: "unknown reset scope", args: []string{"-r", "everything"}, wantErr: shared.ErrInvalidFlag},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			var got requestView
			var buildErr error
			cmd := downloadCommand(f.runner)
			cmd.Action = func(ctx context.Context, c *cli.Command) error {
				req, err := f.runner.buildRequest(c)
				buildErr = err
				if err == nil {
					got = viewRequest(req.Destination, req.Format, req.Policy, req.Reset, req.Force, req.Identifiers)
				}
				return nil
			}

			if err := cmd.Run(context.Background(), append([]string{"download"}, tt.args...)); err != nil {
				t.Fatalf("command failed: %v", err)
			}

			if tt.wantErr != nil {
				if !errors.Is(buildErr, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, buildErr)
				}
				return
			}
			if buildErr != nil {
				t.Fatalf("unexpected error: %v", buildErr)
			}
			tt.check(t, f, got)
		})
	}
}

type requestView struct {
	Destination string
	Format      models.Format
	Compression int
	Bitrate     int
	Workers     int
	Reset       state.ResetScope
	Force       bool
	Identifiers []string
}

func viewRequest(dest string, fc models.FormatConfig, p models.ThrottlePolicy, reset state.ResetScope, force bool, ids []string) requestView {
	return requestView{
		Destination: dest,
		Format:      fc.Format,
		Compression: fc.FlacCompression,
		Bitrate:     fc.MP3Bitrate,
		Workers:     p.Workers(),
		Reset:       reset,
		Force:       force,
		Identifiers: ids,
	}
}

func TestDownloadCommand(t *testing.T) {
	t.Run("downloads and prints summary", func(t *testing.T) {
		f := newFixture(t)
		dir := t.TempDir()

		if err := f.run(t, "download", "-d", dir, "-t", "2", trackURI(1), trackURI(2)); err != nil {
			t.Fatalf("download failed: %v", err)
		}

		out := f.output.String()
		for _, want := range []string{"Batch Summary", "Completed:         2", dir} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
		tu.AssertFileExists(t, filepath.Join(dir, state.FileName))
		tu.AssertNoTempFiles(t, dir)
	})

	t.Run("second run skips present tracks", func(t *testing.T) {
		f := newFixture(t)
		dir := t.TempDir()

		if err := f.run(t, "download", "-d", dir, "-t", "2", trackURI(1)); err != nil {
			t.Fatalf("first download failed: %v", err)
		}
		f.output.Reset()

		// No identifiers: the stored sources are reused.
		if err := f.run(t, "download", "-d", dir, "-t", "2"); err != nil {
			t.Fatalf("second download failed: %v", err)
		}
		if f.streamer.TotalCalls() != 1 {
			t.Errorf("expected one fetch across both runs, got %d", f.streamer.TotalCalls())
		}
	})

	t.Run("creates missing destination", func(t *testing.T) {
		f := newFixture(t)
		dir := filepath.Join(t.TempDir(), "new", "folder")

		if err := f.run(t, "download", "-d", dir, "-t", "2", trackURI(1)); err != nil {
			t.Fatalf("download failed: %v", err)
		}
		tu.AssertDirExists(t, dir)
	})

	t.Run("json output", func(t *testing.T) {
		f := newFixture(t)
		dir := t.TempDir()

		if err := f.run(t, "download", "-d", dir, "-t", "2", "-o", "json", trackURI(1)); err != nil {
			t.Fatalf("download failed: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(f.output.Bytes(), &decoded); err != nil {
			t.Fatalf("expected only JSON on output: %v\n%s", err, f.output.String())
		}
		if decoded["completed"] != float64(1) {
			t.Errorf("expected completed=1, got %v", decoded["completed"])
		}
	})

	t.Run("no inputs and nothing stored", func(t *testing.T) {
		f := newFixture(t)
		err := f.run(t, "download", "-d", t.TempDir(), "-t", "2")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("all tracks failing returns summary and error", func(t *testing.T) {
		f := newFixture(t)
		f.runner.decoder = &tu.MockDecoder{Err: shared.ErrDecode}
		dir := t.TempDir()

		err := f.run(t, "download", "-d", dir, "-t", "2", trackURI(1))
		if !errors.Is(err, shared.ErrNoTracksCompleted) {
			t.Errorf("expected ErrNoTracksCompleted, got %v", err)
		}
		if !strings.Contains(f.output.String(), "Batch Summary") {
			t.Error("expected summary to be printed on failure")
		}
	})

	t.Run("records runs in the catalog", func(t *testing.T) {
		f := newFixture(t)
		f.config.Database.Path = filepath.Join(t.TempDir(), "catalog.db")
		dir := t.TempDir()

		if err := f.run(t, "download", "-d", dir, "-t", "2", "spotify:album:"+tu.TrackID(9)); err != nil {
			t.Fatalf("download failed: %v", err)
		}
		f.output.Reset()

		if err := f.run(t, "runs", "list", "-o", "csv"); err != nil {
			t.Fatalf("runs list failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(f.output.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("expected header and one run, got:\n%s", f.output.String())
		}
		if !strings.Contains(lines[1], dir) || !strings.Contains(lines[1], "completed") {
			t.Errorf("unexpected run row %q", lines[1])
		}
	})
}

func TestHistoryCommands(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	if err := f.run(t, "download", "-d", dir, "-t", "2", trackURI(1)); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	t.Run("show", func(t *testing.T) {
		f.output.Reset()
		if err := f.run(t, "history", "show", "--all", dir); err != nil {
			t.Fatalf("history show failed: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, trackURI(1)) || !strings.Contains(out, tu.TrackID(1)) {
			t.Errorf("expected source and history id in output:\n%s", out)
		}
	})

	t.Run("show json", func(t *testing.T) {
		f.output.Reset()
		if err := f.run(t, "history", "show", "--json", dir); err != nil {
			t.Fatalf("history show failed: %v", err)
		}
		if !json.Valid(f.output.Bytes()) {
			t.Errorf("expected JSON, got %s", f.output.String())
		}
	})

	t.Run("reset", func(t *testing.T) {
		f.output.Reset()
		if err := f.run(t, "history", "reset", "-s", "all", dir); err != nil {
			t.Fatalf("history reset failed: %v", err)
		}

		store, err := state.Open(dir)
		if err != nil {
			t.Fatalf("failed to open state: %v", err)
		}
		defer store.Close()
		if store.IsKnown(tu.TrackID(1)) || len(store.Sources()) != 0 {
			t.Errorf("expected cleared state, got %+v", store.Record())
		}
	})

	t.Run("reset with unknown scope", func(t *testing.T) {
		err := f.run(t, "history", "reset", "-s", "bogus", dir)
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestRunsListWithoutCatalog(t *testing.T) {
	f := newFixture(t)
	if err := f.run(t, "runs", "list"); !errors.Is(err, shared.ErrMissingConfig) {
		t.Errorf("expected ErrMissingConfig, got %v", err)
	}
}

func TestSetupCommands(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: log.New(&bytes.Buffer{})})

		if err := runner.app().Run(context.Background(), []string{"spotsync", "-c", path, "setup", "config"}); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, path)

		if err := runner.app().Run(context.Background(), []string{"spotsync", "-c", path, "setup", "config"}); err == nil {
			t.Error("expected error when the config file already exists")
		}
	})

	t.Run("database", func(t *testing.T) {
		f := newFixture(t)
		f.config.Database.Path = filepath.Join(t.TempDir(), "catalog.db")

		if err := f.run(t, "setup", "database"); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		tu.AssertFileExists(t, f.config.Database.Path)
	})

	t.Run("database without path", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run(t, "setup", "database"); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})
}

func TestExitCode(t *testing.T) {
	if exitCode(nil) != 0 {
		t.Error("expected 0 for nil")
	}
	if exitCode(errors.New("boom")) != 1 {
		t.Error("expected 1 for an error")
	}
}
