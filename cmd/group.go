package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/rooms"
	"github.com/desertthunder/cosmic/internal/shared"
	"github.com/desertthunder/cosmic/internal/tasks"
)

// codeArg reads and validates the room code passed as the first argument.
func codeArg(cmd *cli.Command) (string, error) {
	code := models.NormalizeCode(cmd.Args().First())
	if code == "" {
		return "", fmt.Errorf("%w: room code", shared.ErrMissingArgument)
	}
	if !models.IsRoomCode(code) {
		return "", fmt.Errorf("%w: %q is not a room code", shared.ErrInvalidInput, code)
	}
	return code, nil
}

// memberCap is the number of artists one member may publish.
func (r *Runner) memberCap() int {
	return rooms.SettingsFrom(r.config.Rooms).MemberCap
}

// GroupCreate creates a room and prints its code.
func (r *Runner) GroupCreate(ctx context.Context, cmd *cli.Command) error {
	client, release, err := r.roomClient(cmd)
	if err != nil {
		return err
	}
	defer release()

	code, err := client.CreateRoom(ctx)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	r.logger.Info("room created", "code", code)
	r.writePlain("✓ Room created: %s\n", code)
	r.writePlain("Share the code, then run 'cosmic galaxy --code %s'\n", code)
	return nil
}

// GroupPublish publishes this device's top artists to a room once.
func (r *Runner) GroupPublish(ctx context.Context, cmd *cli.Command) error {
	code, err := codeArg(cmd)
	if err != nil {
		return err
	}
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}
	client, release, err := r.roomClient(cmd)
	if err != nil {
		return err
	}
	defer release()

	id, err := r.deviceID()
	if err != nil {
		return fmt.Errorf("failed to read device id: %w", err)
	}

	tr := r.timeRange(cmd.String("range"))
	top, err := catalog.TopArtists(ctx, tr, r.topLimit(0))
	if err != nil {
		return err
	}
	member := models.Member{ID: id, DisplayName: cmd.String("name"), Artists: models.CapArtists(top, r.memberCap())}

	size, err := client.Publish(ctx, code, member)
	if err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	r.logger.Info("published", "code", code, "artists", len(member.Artists), "members", size)
	r.writePlain("✓ Published %d artists to %s (%d members)\n", len(member.Artists), code, size)
	return nil
}

// GroupShow prints the members and merged artists of a room, or exports them.
func (r *Runner) GroupShow(ctx context.Context, cmd *cli.Command) error {
	code, err := codeArg(cmd)
	if err != nil {
		return err
	}
	client, release, err := r.roomClient(cmd)
	if err != nil {
		return err
	}
	defer release()

	room, err := client.Room(ctx, code, "")
	if err != nil {
		return fmt.Errorf("failed to read room: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(room, cmd.Bool("pretty"))
	}
	if handled, err := r.export(cmd, room); handled || err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Room %s", room.Code))
	r.writePlain("Members: %d\n", len(room.Members))
	for _, m := range room.Members {
		name := m.DisplayName
		if name == "" {
			name = m.ID
		}
		r.writePlain("  %s (%d artists)\n", name, len(m.Artists))
	}
	r.writePlain("\n")
	r.writeArtists(room.Artists())
	return nil
}

// artists resolves the artist set of galaxy-style commands: a room's merged list with --code,
// otherwise this user's top artists.
func (r *Runner) artists(ctx context.Context, cmd *cli.Command, limit int) ([]models.ArtistRecord, string, error) {
	if raw := cmd.String("code"); raw != "" {
		code := models.NormalizeCode(raw)
		if !models.IsRoomCode(code) {
			return nil, "", fmt.Errorf("%w: %q is not a room code", shared.ErrInvalidInput, raw)
		}
		client, release, err := r.roomClient(cmd)
		if err != nil {
			return nil, "", err
		}
		defer release()

		room, err := client.Room(ctx, code, "")
		if err != nil {
			return nil, "", fmt.Errorf("failed to read room: %w", err)
		}
		return room.Artists(), code, nil
	}

	catalog, err := r.Catalog()
	if err != nil {
		return nil, "", err
	}
	top, err := catalog.TopArtists(ctx, r.timeRange(cmd.String("range")), r.topLimit(limit))
	if err != nil {
		return nil, "", err
	}
	return top, "", nil
}

// syncOptions builds the polling loop settings for code from the config and flags.
func (r *Runner) syncOptions(cmd *cli.Command, code, memberID string) tasks.SyncOptions {
	opts := tasks.OptionsFrom(r.config.Group, r.memberCap())
	if v := cmd.String("range"); v != "" {
		opts.TimeRange = models.ParseTimeRange(v)
	}
	opts.Code = code
	opts.MemberID = memberID
	opts.DisplayName = cmd.String("name")
	opts.Logger = r.logger
	return opts
}
