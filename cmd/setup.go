package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cosmic/internal/repositories"
	"github.com/desertthunder/cosmic/internal/shared"
)

// Setup writes the config template when no config file exists yet, then initializes the database
// and runs migrations. --reset rolls the schema back first and --new-device replaces the stored
// device id.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	config := r.config
	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if loaded, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				config = loaded
			}
		}
	}
	r.config = config

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if cmd.Bool("reset") {
		n, err := shared.ResetDatabase(db)
		if err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
		r.logger.Warn("database reset", "rolled_back", n)
		r.writePlain("✓ Reset: rolled back %d migrations\n", n)
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if cmd.Bool("new-device") {
		if err := repositories.NewDeviceRepository(db).DeleteDevice(ctx, deviceName()); err != nil {
			return err
		}
		r.logger.Info("device id cleared")
	}

	id, err := r.storedDeviceID(db)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Database: %s\n", config.Database.Path)
	r.writePlain("✓ Device: %s\n", id)
	if config.Credentials.Spotify.ClientID == "" {
		r.writePlainln("Next steps:")
		r.writePlain("1. Set credentials.spotify.client_id and client_secret in %s (or SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET)\n", configPath)
		r.writePlain("2. Run 'cosmic spotify auth'\n")
	}
	return nil
}
