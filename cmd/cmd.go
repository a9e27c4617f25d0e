// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("TRACKWATCH_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Override log_level from the config (debug, info, warn, error)",
		},
	}
}

// setupCommand writes a config file and prepares the storage backend.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing and initialize storage",
		Action: r.Setup,
	}
}

// serveCommand runs the account-linking server and the scheduler.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve /login and /callback and sync on the configured interval",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-schedule",
				Usage: "Serve HTTP only, without the periodic sync",
			},
		},
		Action: r.Serve,
	}
}

// syncCommand runs exactly one pass, for cron hosts.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Poll every linked account once and announce new tracks",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output run statistics as JSON",
			},
		},
		Action: r.Sync,
	}
}

// identitiesCommand manages linked accounts.
func identitiesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "identities",
		Aliases: []string{"ids"},
		Usage:   "Inspect and remove linked accounts",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List linked accounts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: table, json, csv or text",
						Value:   "table",
					},
				},
				Action: r.IdentitiesList,
			},
			{
				Name:  "remove",
				Usage: "Remove a linked account",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.IdentitiesRemove,
			},
		},
	}
}
