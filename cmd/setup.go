package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jobsync/internal/shared"
)

// SetupConfig writes the default config file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set api.base_url and user.id (or %s and %s)\n", shared.EnvAPIURL, shared.EnvUserID)
	r.writePlain("2. Run 'jobsync health' to check the backend\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	if _, err := r.database(); err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
	return nil
}

// Health checks the backend once.
func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	status, err := r.jobs.Health(ctx)
	if cmd.Bool("json") {
		out := map[string]any{"base_url": r.config.API.BaseURL, "connected": err == nil, "status": status}
		if err != nil {
			out["error"] = err.Error()
		}
		if werr := r.writeJSON(out, true); werr != nil {
			return werr
		}
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrServiceUnavailable, r.config.API.BaseURL, err)
	}

	r.writePlain("✓ Backend reachable at %s (%s)\n", r.config.API.BaseURL, status)
	return nil
}
