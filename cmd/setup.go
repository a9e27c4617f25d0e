package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackwatch/internal/shared"
	"github.com/desertthunder/trackwatch/internal/state"
)

// Setup writes config.toml from the embedded template when missing and initializes storage.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		if !errors.Is(err, os.ErrExist) {
			return err
		}
		r.logger.Info("config file already exists", "path", configPath)
	} else {
		r.logger.Info("config file created", "path", configPath)
		r.writePlain("Created %s\n", configPath)
	}

	if !r.configSet {
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrMissingConfig, err)
		}
		r.config = config
	}

	r.logger.Info("initializing storage", "driver", r.config.Database.Driver)
	_, closeRepo, err := r.openRepository(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer closeRepo()

	if r.config.State.Key == "" {
		key, err := state.GenerateKey()
		if err != nil {
			return err
		}
		r.writePlain("\nNo state key configured. Set this under [state] key:\n  %s\n", key)
	}

	r.writePlain("\nNext steps:\n")
	r.writePlain("  1. Fill in [credentials.spotify] and [credentials.discord] in %s\n", configPath)
	r.writePlain("  2. Run `trackwatch serve` and share /login?id=<your discord id>\n")
	return nil
}
