package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/ui"
)

// Setup writes a config file from the template if none exists, then migrates the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); errors.Is(err, os.ErrNotExist) {
			r.logger.Info("config file not found, creating from template", "path", r.configPath)
			if err := shared.CreateConfigFile(r.configPath); err != nil {
				return err
			}
			r.writePlainln(ui.Success("Created %s. Add your Spotify client id and secret before running `spotstats auth login`.", r.configPath))

			config, err := r.loadConfig(r.configPath)
			if err != nil {
				return err
			}
			r.config = config
		}
	}

	r.logger.Info("initializing database", "driver", r.config.Database.Driver, "path", r.config.Database.Path)

	db, err := r.database()
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return err
	}
	return r.writePlainln(ui.Success("Database ready at schema version %d", version))
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return err
	}
	r.db = db

	current, err := shared.CurrentVersion(db)
	if err != nil || current < 0 {
		return r.writePlainln(ui.Warning("Nothing to roll back"))
	}

	version, err := shared.RollbackMigration(db)
	if err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return r.writePlainln(ui.Success("Rolled back migration %04d", version))
}
