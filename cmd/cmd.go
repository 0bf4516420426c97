// submodule cmd contains command definitions
package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cosmic/internal/models"
)

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
		&cli.BoolFlag{
			Name:  "csv",
			Usage: "Write a CSV export (use with --output)",
		},
		&cli.BoolFlag{
			Name:  "md",
			Usage: "Write a markdown export with a cover image (use with --output)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output file path (or directory for --md)",
		},
	}
}

func groupFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "server",
			Usage: "Base URL of the cosmic server (defaults to server.base_url)",
		},
		&cli.BoolFlag{
			Name:  "local",
			Usage: "Use the configured room store directly instead of a server",
		},
	}
}

func rangeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "range",
		Aliases: []string{"r"},
		Usage:   "Time range: short_term, medium_term or long_term (defaults to group.time_range)",
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Maximum number of artists (defaults to group.top_limit)",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and initialize the database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Roll back every migration first, dropping stored rooms and devices",
			},
			&cli.BoolFlag{
				Name:  "new-device",
				Usage: "Forget this machine's device id and register a new one",
			},
		},
		Action: r.Setup,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server: login, top artists, rooms and snapshots",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// spotifyCommand handles Spotify account operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.SpotifyAuth,
			},
			{
				Name:  "whoami",
				Usage: "Show the signed in Spotify profile",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.SpotifyWhoami,
			},
		},
	}
}

func topCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "top",
		Usage:  "List your top artists",
		Flags:  append([]cli.Flag{rangeFlag(), limitFlag()}, outputFlags()...),
		Action: r.Top,
	}
}

// groupCommand handles shared galaxy rooms
func groupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "group",
		Aliases: []string{"room"},
		Usage:   "Shared galaxy rooms",
		Commands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Create a room and print its code",
				Flags:  groupFlags(),
				Action: r.GroupCreate,
			},
			{
				Name:      "publish",
				Usage:     "Publish your top artists to a room",
				ArgsUsage: "<code>",
				Flags: append(groupFlags(),
					rangeFlag(),
					&cli.StringFlag{Name: "name", Usage: "Display name shown to other members"},
				),
				Action: r.GroupPublish,
			},
			{
				Name:      "show",
				Usage:     "Show the members and merged artists of a room",
				ArgsUsage: "<code>",
				Flags:     append(groupFlags(), outputFlags()...),
				Action:    r.GroupShow,
			},
		},
	}
}

func galaxyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "galaxy",
		Aliases: []string{"tui"},
		Usage:   "Open the interactive galaxy (solo, or a room with --code)",
		Flags: append(groupFlags(),
			rangeFlag(),
			&cli.StringFlag{Name: "code", Usage: "Room code to join"},
			&cli.StringFlag{Name: "name", Usage: "Display name shown to other members"},
			&cli.BoolFlag{Name: "create", Usage: "Create a new room and join it"},
			&cli.StringFlag{Name: "snapshots", Usage: "Directory for saved snapshots", Value: "."},
		),
		Action: r.Galaxy,
	}
}

func snapshotCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Render the galaxy to an SVG file",
		Flags: append(groupFlags(),
			rangeFlag(),
			limitFlag(),
			&cli.StringFlag{Name: "code", Usage: "Render a room instead of your own artists"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file", Value: "galaxy.svg"},
			&cli.FloatFlag{Name: "width", Usage: "Image width", Value: 1200},
			&cli.FloatFlag{Name: "height", Usage: "Image height", Value: 800},
			&cli.IntFlag{Name: "ticks", Usage: "Simulation steps before rendering (defaults to galaxy.snapshot_ticks)"},
		),
		Action: r.Snapshot,
	}
}

func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Summarize the similarity graph of your artists or a room",
		Flags: append(groupFlags(),
			rangeFlag(),
			limitFlag(),
			&cli.StringFlag{Name: "code", Usage: "Summarize a room instead of your own artists"},
			&cli.IntFlag{Name: "top", Usage: "Length of the hub and link lists", Value: 5},
			&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
			&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
		),
		Action: r.Stats,
	}
}

// timeRange resolves --range against the config default.
func (r *Runner) timeRange(value string) models.TimeRange {
	if value == "" {
		value = r.config.Group.TimeRange
	}
	return models.ParseTimeRange(value)
}

// topLimit resolves --limit against the config default.
func (r *Runner) topLimit(n int) int {
	if n <= 0 {
		n = r.config.Group.TopLimit
	}
	if n <= 0 {
		n = 30
	}
	return n
}
