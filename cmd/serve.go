package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cosmic/internal/repositories"
	"github.com/desertthunder/cosmic/internal/rooms"
	"github.com/desertthunder/cosmic/internal/server"
)

// sweepInterval is how often expired rooms are purged from stores without native expiry.
const sweepInterval = time.Minute

// Serve runs the HTTP server until interrupted. Login and the top artists route are enabled only
// when Spotify credentials and a session secret are configured.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	svc, store, release, err := r.roomService()
	if err != nil {
		return err
	}
	defer release()

	deps := server.Deps{Config: r.config, Rooms: svc, Logger: r.logger}

	sessions, err := server.NewSessionManager(r.config.Session)
	if err != nil {
		r.logger.Warn("login disabled", "error", err)
	} else {
		deps.Sessions = sessions
	}

	if spotify, err := r.spotifyService(); err != nil {
		r.logger.Warn("top artists disabled", "error", err)
	} else {
		deps.Auth = spotify
		deps.Catalogs = server.SpotifyCatalogs(spotify)
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	go r.sweep(ctx, store, sweepInterval)

	r.logger.Info("starting server", "addr", addr, "rooms", r.config.Rooms.Backend, "base_url", r.config.Server.BaseURL)
	return server.NewServer(addr, server.NewApp(deps), r.logger).Start(ctx)
}

// sweep purges expired rooms every interval until ctx ends.
func (r *Runner) sweep(ctx context.Context, store rooms.Store, interval time.Duration) {
	var purge func() (int64, error)
	switch s := store.(type) {
	case *rooms.MemoryStore:
		purge = func() (int64, error) { return int64(s.Sweep()), nil }
	case *repositories.RoomRepository:
		purge = func() (int64, error) { return s.Sweep(ctx) }
	default:
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purge()
			if err != nil {
				r.logger.Warn("room sweep failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Debug("expired rooms removed", "count", n)
			}
		}
	}
}
