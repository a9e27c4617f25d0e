package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackwatch/internal/formatter"
	"github.com/desertthunder/trackwatch/internal/shared"
	"github.com/desertthunder/trackwatch/internal/ui"
)

// IdentitiesList prints every linked account in the requested format.
func (r *Runner) IdentitiesList(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")

	repo, closeRepo, err := r.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	identities, err := repo.List(ctx)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case "table", "":
		return r.writePlain("%s\n", ui.RenderIdentities(identities, r.now()))
	case "json":
		data, err = formatter.ExportToJSON(identities)
	case "csv":
		data, err = formatter.ExportToCSV(identities)
	case "text":
		data, err = formatter.ExportToText(identities)
	default:
		return fmt.Errorf("%w: unknown format %q (table, json, csv, text)", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}

	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// IdentitiesRemove deletes one linked account.
func (r *Runner) IdentitiesRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: identity id", shared.ErrMissingArgument)
	}

	repo, closeRepo, err := r.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	if err := repo.Delete(ctx, id); err != nil {
		return err
	}

	r.logger.Info("removed identity", "id", id)
	return r.writePlain("Removed %s\n", id)
}
