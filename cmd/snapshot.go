package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cosmic/internal/formatter"
	"github.com/desertthunder/cosmic/internal/galaxy"
	"github.com/desertthunder/cosmic/internal/viz"
)

// Snapshot lays the galaxy out headlessly and writes it as an SVG file.
func (r *Runner) Snapshot(ctx context.Context, cmd *cli.Command) error {
	artists, code, err := r.artists(ctx, cmd, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	ticks := int(cmd.Int("ticks"))
	if ticks <= 0 {
		ticks = r.config.Galaxy.SnapshotTicks
	}

	path := cmd.String("output")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	opts := viz.Options{Galaxy: r.config.Galaxy, Logger: r.logger}
	if err := viz.SnapshotSVG(f, artists, cmd.Float("width"), cmd.Float("height"), ticks, opts); err != nil {
		return fmt.Errorf("failed to render snapshot: %w", err)
	}

	r.logger.Info("snapshot written", "path", path, "artists", len(artists), "code", code)
	r.writePlain("✓ Galaxy with %d artists saved to %s\n", len(artists), path)
	return nil
}

// Stats prints a summary of the similarity graph.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	artists, code, err := r.artists(ctx, cmd, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	g := galaxy.Build(artists, galaxy.Options{Threshold: r.config.Galaxy.EdgeThreshold})
	stats := formatter.Stats(g, int(cmd.Int("top")))

	if cmd.Bool("json") {
		return r.writeJSON(stats, cmd.Bool("pretty"))
	}

	names := make(map[string]string, len(artists))
	for _, a := range artists {
		names[a.ID] = a.Name
	}
	if code != "" {
		r.writePlainHeader(fmt.Sprintf("Galaxy %s", code))
	} else {
		r.writePlainHeader("Solo galaxy")
	}
	_, err = r.output.Write(formatter.ExportStats(stats, names))
	return err
}
