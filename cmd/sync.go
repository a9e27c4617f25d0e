package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackwatch/internal/tasks"
	"github.com/desertthunder/trackwatch/internal/ui"
)

// Sync performs exactly one pass over every linked account.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.ValidateSync(); err != nil {
		return err
	}

	spotify, err := r.newSpotify()
	if err != nil {
		return err
	}

	repo, closeRepo, err := r.openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	job, err := r.newSyncJob(repo, spotify)
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.logger.Debug(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	stats, err := job.Run(ctx, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}
	return r.writePlain("%s\n", ui.RenderSyncStats(stats))
}
