// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func timeRangeFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    "time-range",
		Aliases: []string{"t"},
		Usage:   usage + " (short_term, medium_term, long_term; default from config)",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output JSON"}
}

func limitFlag(value int) cli.Flag {
	return &cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum number of rows", Value: value}
}

// setupCommand handles database and configuration setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file if missing and migrate the database",
		Action: r.Setup,
		Commands: []*cli.Command{
			{
				Name:   "rollback",
				Usage:  "Revert the latest database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles Spotify authentication.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify through the browser and save the token file",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "no-browser", Usage: "Print the authorization URL instead of opening it"},
					&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for the callback (default from config)"},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show token expiry and whether a refresh token is stored",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the token file",
				Action: r.AuthLogout,
			},
		},
	}
}

func retryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "retries", Usage: "Retries after a failed attempt (default from config)", Value: -1},
		&cli.DurationFlag{Name: "retry-delay", Usage: "Delay between attempts (default from config)"},
	}
}

// runCommand chains extract, transform and load.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Extract, transform and load in one go",
		Flags:  append([]cli.Flag{timeRangeFlag("Label for snapshot rows")}, retryFlags()...),
		Action: r.Run,
	}
}

func extractCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Fetch a raw snapshot from the Spotify API",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Snapshot file, - for stdout", Value: "snapshot.json"},
		}, retryFlags()...),
		Action: r.Extract,
	}
}

func transformCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "transform",
		Usage: "Turn a raw snapshot into a load batch",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Snapshot file, - for stdin", Value: "snapshot.json"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Batch file, - for stdout", Value: "batch.json"},
			timeRangeFlag("Label for snapshot rows"),
		},
		Action: r.Transform,
	}
}

func loadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "Persist a load batch",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Batch file, - for stdin", Value: "batch.json"},
		}, retryFlags()...),
		Action: r.Load,
	}
}

func artistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artist",
		Usage: "Manage stored artists",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Look an artist up by name and store it",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "candidates", Usage: "Search results to compare", Value: 5},
				},
				Action: r.ArtistAdd,
			},
			{
				Name:   "list",
				Usage:  "List stored artists",
				Flags:  []cli.Flag{limitFlag(50), &cli.IntFlag{Name: "offset"}, jsonFlag()},
				Action: r.ArtistList,
			},
		},
	}
}

func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "runs",
		Usage:  "Show recent pipeline runs",
		Flags:  []cli.Flag{limitFlag(20), jsonFlag()},
		Action: r.Runs,
	}
}

func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print listening stats from the store",
		Flags: []cli.Flag{
			timeRangeFlag("Time range"),
			limitFlag(10),
			&cli.IntFlag{Name: "days", Usage: "Days of listening history to summarize", Value: 7},
			jsonFlag(),
		},
		Action: r.Stats,
	}
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export top tracks, top artists and recent plays",
		Flags: []cli.Flag{
			timeRangeFlag("Time range"),
			limitFlag(50),
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, markdown, text or json", Value: "markdown"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory", Value: "."},
			&cli.BoolFlag{Name: "cover", Usage: "Download the top artist's image (markdown only)"},
			&cli.BoolFlag{Name: "stdout", Usage: "Write to stdout instead of files"},
		},
		Action: r.Export,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the stats JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default from config)"},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level command for the interactive dashboard.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"dashboard", "ui"},
		Usage:   "Browse listening stats in the terminal",
		Flags: []cli.Flag{
			limitFlag(50),
			&cli.StringFlag{Name: "log-file", Usage: "Where logs go while the dashboard is open", Value: "spotstats-tui.log"},
		},
		Action: r.TUI,
	}
}
