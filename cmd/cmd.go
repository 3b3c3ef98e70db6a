// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// downloadCommand resolves identifiers and downloads every track not already in the destination
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Download tracks, albums, playlists or episodes into a folder",
		ArgsUsage: "[identifier ...]",
		Description: "Identifiers are spotify:<kind>:<id> URIs or open.spotify.com links.\n" +
			"Without identifiers the sources of the previous run in the folder are reused.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dest",
				Aliases: []string{"d"},
				Usage:   "Destination folder (default: download.destination)",
			},
			&cli.IntFlag{
				Name:    "turbo",
				Aliases: []string{"t"},
				Usage:   "Download N tracks in parallel without pacing; 1 keeps serial mode",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: mp3 or flac (default: download.format)",
			},
			&cli.IntFlag{
				Name:  "flac-compression",
				Usage: "FLAC compression level 0-8",
			},
			&cli.IntFlag{
				Name:  "bitrate",
				Usage: "MP3 bitrate in kbps",
			},
			&cli.StringFlag{
				Name:    "reset",
				Aliases: []string{"r"},
				Usage:   "Clear sync state before running: history, membership, sources or all",
			},
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"F"},
				Usage:   "Download even when a track is already present",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show a live progress view",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Summary format: text, json or csv",
				Value:   "text",
			},
		},
		Action: r.Download,
	}
}

// historyCommand inspects and clears a folder's sync state
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect or reset a folder's sync state",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show sources, membership and download history",
				ArgsUsage: "[folder]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "all",
						Aliases: []string{"a"},
						Usage:   "List every downloaded track ID",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:      "reset",
				Usage:     "Clear part of the sync state",
				ArgsUsage: "[folder]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "scope",
						Aliases: []string{"s"},
						Usage:   "What to clear: history, membership, sources or all",
						Value:   "history",
					},
				},
				Action: r.HistoryReset,
			},
		},
	}
}

// runsCommand reads the batch run log from the catalog
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Batch run log (requires database.path)",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "destination",
						Usage: "Only runs into this folder",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only runs with this status: running, completed, partial or failed",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to return",
						Value: 20,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output format: text, json or csv",
						Value:   "text",
					},
				},
				Action: r.RunsList,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the catalog database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the example configuration to --config",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the catalog database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}
