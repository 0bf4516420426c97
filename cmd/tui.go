package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/services"
	"github.com/desertthunder/cosmic/internal/shared"
	"github.com/desertthunder/cosmic/internal/tasks"
	"github.com/desertthunder/cosmic/internal/ui"
)

const tuiLogName = "cosmic-tui.log"

// tuiLogPath prefers ./tmp during development, then the config directory.
func tuiLogPath() string {
	if info, err := os.Stat("tmp"); err == nil && info.IsDir() {
		return filepath.Join("tmp", tuiLogName)
	}
	if dir, err := shared.ConfigDir(); err == nil {
		return filepath.Join(dir, tuiLogName)
	}
	return filepath.Join(os.TempDir(), tuiLogName)
}

// Galaxy launches the interactive galaxy. With --code or --create the viewer joins a room and
// polls it; otherwise it shows this user's own artists.
func (r *Runner) Galaxy(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}

	code := models.NormalizeCode(cmd.String("code"))
	if code != "" && !models.IsRoomCode(code) {
		return fmt.Errorf("%w: %q is not a room code", shared.ErrInvalidInput, cmd.String("code"))
	}

	var client services.RoomClient
	var memberID string
	if code != "" || cmd.Bool("create") {
		c, release, err := r.roomClient(cmd)
		if err != nil {
			return err
		}
		defer release()
		client = c

		if code == "" {
			if code, err = client.CreateRoom(ctx); err != nil {
				return fmt.Errorf("failed to create room: %w", err)
			}
			r.writePlain("✓ Room created: %s\n", code)
		}
		if memberID, err = r.deviceID(); err != nil {
			return fmt.Errorf("failed to read device id: %w", err)
		}
	}

	// Logs go to a file so they do not tear the alt screen.
	fileLogger, closer, err := shared.NewFileLogger(tuiLogPath())
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	sync := tasks.NewGroupSync(catalog, client, r.syncOptions(cmd, code, memberID))
	return ui.Run(ctx, ui.Options{
		Galaxy:      r.config.Galaxy,
		Sync:        sync,
		Code:        code,
		SnapshotDir: cmd.String("snapshots"),
		Open:        shared.OpenBrowser,
		Logger:      fileLogger,
	})
}
