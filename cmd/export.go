package main

import (
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cosmic/internal/formatter"
	"github.com/desertthunder/cosmic/internal/models"
)

// export writes room in the format selected by --csv, --md or --output. It reports false when no
// export flag is set and the caller should print instead.
func (r *Runner) export(cmd *cli.Command, room models.Room) (bool, error) {
	output := cmd.String("output")

	switch {
	case cmd.Bool("csv"):
		result, err := formatter.WriteCSVExport(room, output)
		if err != nil {
			return true, err
		}
		r.writePlain("✓ Exported to %s\n", result.ArtistsFile)
		r.writePlain("✓ Metadata saved to %s\n", result.MetadataFile)
		return true, nil
	case cmd.Bool("md"):
		result, err := formatter.WriteMarkdownExport(room, output, "", r.output)
		if err != nil {
			return true, err
		}
		r.writePlain("✓ Exported to %s\n", result.Directory)
		for _, f := range result.Files {
			r.writePlain("  %s\n", f)
		}
		return true, nil
	case output != "":
		path, err := formatter.WriteTextExport(room.Artists(), output)
		if err != nil {
			return true, err
		}
		r.writePlain("✓ Exported to %s\n", path)
		return true, nil
	}
	return false, nil
}
