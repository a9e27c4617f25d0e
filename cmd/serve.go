package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/trackwatch/internal/scheduler"
	"github.com/desertthunder/trackwatch/internal/server"
	"github.com/desertthunder/trackwatch/internal/state"
)

// Serve runs the account-linking server and, unless --no-schedule is set, the periodic sync.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	key, err := r.config.State.DecodedKey()
	if err != nil {
		return err
	}
	codec, err := state.NewCodec(key)
	if err != nil {
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

	handler := server.NewAuthHandler(spotify, codec, repo, r.config.Credentials.Spotify.ProfileURL(), r.logger)
	srv := server.NewServer(r.config.Server.Addr(), server.NewRouter(handler, r.logger), r.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	if cmd.Bool("no-schedule") {
		r.logger.Info("periodic sync disabled")
	} else {
		job, err := r.newSyncJob(repo, spotify)
		if err != nil {
			return err
		}
		sched := scheduler.NewScheduler(job, r.config.Sync.Interval, r.config.Sync.Timeout, r.logger)
		g.Go(func() error {
			return sched.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
