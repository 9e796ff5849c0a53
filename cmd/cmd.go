// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		setupCommand(r),
		healthCommand(r),
		syncCommand(r),
		reviewCommand(r),
		jobsCommand(r),
		storeCommand(r),
		serveCommand(r),
		tuiCommand(r),
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func waitFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "wait",
		Aliases: []string{"w"},
		Usage:   "Follow the job until polling stops",
	}
}

func directionFlag(value string) cli.Flag {
	return &cli.StringFlag{
		Name:    "direction",
		Aliases: []string{"d"},
		Usage:   "Sync direction (forward or reverse)",
		Value:   value,
	}
}

func indexFlag() cli.Flag {
	return &cli.IntFlag{
		Name:     "index",
		Aliases:  []string{"i"},
		Usage:    "Position of the song in the review list",
		Required: true,
	}
}

// setupCommand handles first-run setup of the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write the default config file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"p"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// healthCommand checks the backend
func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check that the job backend is reachable",
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Health,
	}
}

// syncCommand handles the job lifecycle
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Start, follow and finalize sync jobs",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start a sync job for the configured user",
				Flags: []cli.Flag{
					directionFlag(""),
					&cli.StringFlag{
						Name:     "playlist",
						Aliases:  []string{"p"},
						Usage:    "Playlist name",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "track",
						Aliases: []string{"t"},
						Usage:   "Track to sync (repeatable, default all)",
					},
					&cli.BoolFlag{
						Name:  "supersede",
						Usage: "Stop following an in-flight job instead of failing",
					},
					waitFlag(),
					jsonFlag(),
				},
				Action: r.SyncStart,
			},
			{
				Name:   "status",
				Usage:  "Show the current job, review counts and processes",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.SyncStatus,
			},
			{
				Name:   "resume",
				Usage:  "Rejoin the current or latest in-flight job",
				Flags:  []cli.Flag{waitFlag()},
				Action: r.SyncResume,
			},
			{
				Name:  "finalize",
				Usage: "Submit the reviewed songs of the current job",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "skip-unresolved",
						Usage: "Skip every song that still needs a manual search",
					},
					waitFlag(),
				},
				Action: r.SyncFinalize,
			},
		},
	}
}

// reviewCommand handles manual correction of the review lists
func reviewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Inspect and correct the review lists",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show a review list",
				Flags: []cli.Flag{
					directionFlag(""),
					jsonFlag(),
				},
				Action: r.ReviewList,
			},
			{
				Name:  "search",
				Usage: "Run a manual search for one song",
				Flags: []cli.Flag{
					directionFlag(""),
					indexFlag(),
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Search text (default the song name)",
					},
					jsonFlag(),
				},
				Action: r.ReviewSearch,
			},
			{
				Name:  "select",
				Usage: "Resolve a song with a manual search candidate",
				Flags: []cli.Flag{
					directionFlag(""),
					indexFlag(),
					&cli.IntFlag{
						Name:     "candidate",
						Aliases:  []string{"c"},
						Usage:    "Position of the candidate in the search results",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Search text used to list the candidates",
					},
				},
				Action: r.ReviewSelect,
			},
			{
				Name:  "skip",
				Usage: "Mark a song as skipped",
				Flags: []cli.Flag{
					directionFlag(""),
					indexFlag(),
				},
				Action: r.ReviewSkip,
			},
			{
				Name:  "suggest",
				Usage: "Search every unresolved song concurrently",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent searches",
						Value: 4,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Searches per second",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Candidates kept per song",
						Value: 3,
					},
					jsonFlag(),
				},
				Action: r.ReviewSuggest,
			},
		},
	}
}

// jobsCommand handles the local job history
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Local job history",
		Commands: []*cli.Command{
			{
				Name:  "history",
				Usage: "List recorded jobs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of jobs to list",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only jobs with this status",
					},
					directionFlag(""),
					jsonFlag(),
				},
				Action: r.JobsHistory,
			},
			{
				Name:  "prune",
				Usage: "Delete all but the newest jobs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Number of jobs to keep",
						Value: 50,
					},
				},
				Action: r.JobsPrune,
			},
			{
				Name:  "report",
				Usage: "Export the review lists of the current job",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, markdown, txt, table or json",
						Value:   "table",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default stdout for table)",
					},
				},
				Action: r.JobsReport,
			},
		},
	}
}

// storeCommand reads and writes raw state keys
func storeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Read and write persisted state keys",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Print the stored value of a key",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
				},
				Action: r.StoreGet,
			},
			{
				Name:  "set",
				Usage: "Store a raw JSON value under a key",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
					&cli.StringArg{Name: "value"},
				},
				Action: r.StoreSet,
			},
		},
	}
}

// serveCommand runs the status server in the foreground
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Follow the current job and serve status and metrics over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default metrics.addr)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive review.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for following and reviewing jobs",
		Action:  r.TUI,
	}
}
