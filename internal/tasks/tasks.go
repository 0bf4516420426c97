// package tasks implements the group polling loop.
//
// The core abstraction is [GroupSync], which repeatedly fetches the listener's top artists,
// republishes them to a room, then reads back the merged artist list.
// Iterations emit updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/services"
	"github.com/desertthunder/cosmic/internal/shared"
)

// DefaultInterval is the delay between two polling iterations.
const DefaultInterval = 5 * time.Second

// SyncOptions configures a [GroupSync].
type SyncOptions struct {
	Code        string // Room code; empty runs the loop in solo mode
	MemberID    string // Stable id of this device in the room
	DisplayName string
	TimeRange   models.TimeRange
	Limit       int // Top artists requested per iteration
	MemberCap   int // Artists published per member
	Interval    time.Duration
	Logger      *log.Logger
}

// OptionsFrom fills the loop settings from the group config section.
func OptionsFrom(cfg shared.GroupConfig, memberCap int) SyncOptions {
	return SyncOptions{
		TimeRange: models.ParseTimeRange(cfg.TimeRange),
		Limit:     cfg.TopLimit,
		MemberCap: memberCap,
		Interval:  cfg.PollInterval.Duration,
	}
}

// GroupSync is the polling loop of one viewer.
type GroupSync struct {
	catalog services.Catalog
	rooms   services.RoomClient
	opts    SyncOptions
	logger  *log.Logger
}

// NewGroupSync creates a new GroupSync. rooms may be nil in solo mode.
func NewGroupSync(catalog services.Catalog, rooms services.RoomClient, opts SyncOptions) *GroupSync {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Limit <= 0 {
		opts.Limit = 30
	}
	if opts.MemberCap <= 0 {
		opts.MemberCap = 20
	}
	if opts.TimeRange == "" {
		opts.TimeRange = models.MediumTerm
	}
	opts.Code = models.NormalizeCode(opts.Code)

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &GroupSync{catalog: catalog, rooms: rooms, opts: opts, logger: logger.WithPrefix("sync")}
}

// Solo reports whether the loop runs without a room.
func (g *GroupSync) Solo() bool { return g.rooms == nil || g.opts.Code == "" }

// sendProgress sends an update through the channel without blocking.
func sendProgress(updates chan<- SyncUpdate, update SyncUpdate) {
	if updates == nil {
		return
	}
	select {
	case updates <- update:
	default:
	}
}

// deliver sends a result, waiting for the receiver unless ctx ends first. Results computed after
// cancellation are dropped.
func deliver(ctx context.Context, updates chan<- SyncUpdate, update SyncUpdate) bool {
	if updates == nil || ctx.Err() != nil {
		return false
	}
	select {
	case updates <- update:
		return true
	case <-ctx.Done():
		return false
	}
}

// Iterate runs one fetch, publish, read cycle and returns the merged artists.
//
// A catalog failure other than authentication degrades to an empty list: in solo mode the result
// is empty, in group mode the publish is skipped and the room is still read.
func (g *GroupSync) Iterate(ctx context.Context, n int, updates chan<- SyncUpdate) ([]models.ArtistRecord, int, error) {
	sendProgress(updates, fetchTopUpdate(n, g.catalog.Name()))

	top, err := g.catalog.TopArtists(ctx, g.opts.TimeRange, g.opts.Limit)
	switch {
	case isAuthError(err):
		return nil, 0, err
	case ctx.Err() != nil:
		return nil, 0, ctx.Err()
	case err != nil:
		g.logger.Warn("top artists unavailable", "iteration", n, "error", err)
		top = nil
	}
	top = models.CapArtists(top, g.opts.MemberCap)

	if g.Solo() {
		if top == nil {
			top = []models.ArtistRecord{}
		}
		return top, 0, nil
	}

	if err == nil {
		sendProgress(updates, publishUpdate(n, g.opts.Code, len(top)))
		member := models.Member{ID: g.opts.MemberID, DisplayName: g.opts.DisplayName, Artists: top}
		if _, err := g.rooms.Publish(ctx, g.opts.Code, member); err != nil {
			return nil, 0, fmt.Errorf("publish: %w", err)
		}
	}

	sendProgress(updates, readRoomUpdate(n, g.opts.Code))
	room, err := g.rooms.Room(ctx, g.opts.Code, g.opts.MemberID)
	if err != nil {
		return nil, 0, fmt.Errorf("read room: %w", err)
	}

	merged := room.Artists()
	if merged == nil {
		merged = []models.ArtistRecord{}
	}
	return merged, len(room.Members), nil
}

// Run polls until ctx is cancelled: one iteration immediately, then one per interval.
//
// Iteration errors are logged, reported as [Failed] updates and swallowed. An authentication
// failure stops the loop and is returned. Run closes nothing; the caller owns updates.
func (g *GroupSync) Run(ctx context.Context, updates chan<- SyncUpdate) error {
	ticker := time.NewTicker(g.opts.Interval)
	defer ticker.Stop()

	g.logger.Info("polling started", "code", g.opts.Code, "solo", g.Solo(), "interval", g.opts.Interval)
	defer g.logger.Info("polling stopped", "code", g.opts.Code)

	for n := 1; ; n++ {
		artists, members, err := g.Iterate(ctx, n, updates)
		switch {
		case ctx.Err() != nil:
			sendProgress(updates, SyncUpdate{Phase: Stopped, Iteration: n, Message: "Stopped"})
			return nil
		case isAuthError(err):
			g.logger.Error("polling needs authentication", "error", err)
			deliver(ctx, updates, unauthenticatedUpdate(n, err))
			return err
		case err != nil:
			g.logger.Warn("polling iteration failed", "iteration", n, "error", err)
			sendProgress(updates, failedUpdate(n, err))
		default:
			deliver(ctx, updates, mergedUpdate(n, artists, members))
		}

		select {
		case <-ctx.Done():
			sendProgress(updates, SyncUpdate{Phase: Stopped, Iteration: n, Message: "Stopped"})
			return nil
		case <-ticker.C:
		}
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrRefreshFailed)
}
