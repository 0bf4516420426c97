package viz

import (
	"io"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/render/scene"
)

// DefaultSnapshotTicks is how long a headless layout runs when the config leaves it unset.
const DefaultSnapshotTicks = 300

// SnapshotSVG lays artists out on an offscreen stage of width x height, runs the simulation for
// ticks steps (or until it cools) and writes the frame as SVG.
func SnapshotSVG(w io.Writer, artists []models.ArtistRecord, width, height float64, ticks int, opts Options) error {
	if ticks <= 0 {
		ticks = DefaultSnapshotTicks
	}

	s, err := Initialize(scene.New(width, height), artists, opts)
	if err != nil {
		return err
	}
	defer s.Dispose()

	if err := s.Run(ticks); err != nil {
		return err
	}
	if err := s.Advance(0); err != nil {
		return err
	}
	return s.Snapshot(w)
}
