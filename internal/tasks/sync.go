package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/shared"
)

const (
	defaultConcurrency = 4
	syncFlightKey      = "sync"
)

// SyncOptions configures parallelism and pacing of a [SyncJob].
type SyncOptions struct {
	Concurrency int     // Identity pipelines run at once (default: 4)
	RateLimit   float64 // Identity pipelines started per second, 0 means unlimited
}

// SyncStats summarizes one run.
type SyncStats struct {
	RunID        string        `json:"run_id"`
	Identities   int           `json:"identities"`
	Refreshed    int           `json:"refreshed"`
	Unchanged    int           `json:"unchanged"`
	Updated      int           `json:"updated"`
	Notified     int           `json:"notified"`
	Skipped      int           `json:"skipped"`
	PollFailed   int           `json:"poll_failed"`
	NotifyFailed int           `json:"notify_failed"`
	Duration     time.Duration `json:"duration"`
}

// SyncJob runs the saved-tracks pipeline over every stored identity.
//
// Overlapping calls to Run share the in-flight run.
type SyncJob struct {
	repo        models.IdentityRepository
	tokens      *TokenManager
	poller      *Poller
	notifier    *Notifier
	logger      *log.Logger
	limiter     *rate.Limiter
	concurrency int
	flight      singleflight.Group
}

func NewSyncJob(repo models.IdentityRepository, tokens *TokenManager, poller *Poller, notifier *Notifier, logger *log.Logger, opts SyncOptions) *SyncJob {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &SyncJob{
		repo:        repo,
		tokens:      tokens,
		poller:      poller,
		notifier:    notifier,
		logger:      logger,
		limiter:     rate.NewLimiter(limit, 1),
		concurrency: concurrency,
	}
}

// Run performs one pass. Identity-scoped failures are logged and counted, not returned.
//
// The returned error reports a failure to list identities, a cancelled context,
// or progress writes that did not complete.
func (j *SyncJob) Run(ctx context.Context, progress chan<- ProgressUpdate) (*SyncStats, error) {
	v, err, joined := j.flight.Do(syncFlightKey, func() (any, error) {
		return j.run(ctx, progress)
	})
	if joined {
		j.logger.Info("joined an in-flight sync run")
	}

	stats, _ := v.(*SyncStats)
	return stats, err
}

// Sync runs one pass without progress reporting.
func (j *SyncJob) Sync(ctx context.Context) error {
	_, err := j.Run(ctx, nil)
	return err
}

// sendProgress sends a progress update through the channel without blocking.
func (j *SyncJob) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

type tally struct {
	mu    sync.Mutex
	stats *SyncStats
}

func (t *tally) add(fn func(s *SyncStats)) {
	t.mu.Lock()
	fn(t.stats)
	t.mu.Unlock()
}

func (j *SyncJob) run(ctx context.Context, progress chan<- ProgressUpdate) (*SyncStats, error) {
	start := time.Now()
	runID := shared.GenerateID()
	logger := shared.WithLogger(j.logger, "run", runID)

	identities, err := j.repo.List(ctx)
	if err != nil {
		logger.Error("failed to list identities", "err", err)
		return nil, fmt.Errorf("%w: listing identities: %v", shared.ErrPersistence, err)
	}

	total := len(identities)
	t := &tally{stats: &SyncStats{RunID: runID, Identities: total}}
	j.sendProgress(progress, loadIdentitiesUpdate(total))
	logger.Info("starting sync run", "identities", total)

	var (
		pending PendingWrites
		g       errgroup.Group
	)
	g.SetLimit(j.concurrency)

	for i, identity := range identities {
		g.Go(func() error {
			return j.syncIdentity(ctx, logger, &pending, t, progress, i+1, total, identity)
		})
	}

	runErr := g.Wait()

	j.sendProgress(progress, awaitWritesUpdate())
	writeErr := pending.Wait()

	stats := t.stats
	stats.Duration = time.Since(start)

	logger.Info("sync run finished",
		"duration", stats.Duration.Round(time.Millisecond),
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"notified", stats.Notified,
		"skipped", stats.Skipped,
		"poll_failed", stats.PollFailed,
		"notify_failed", stats.NotifyFailed,
	)

	return stats, errors.Join(runErr, writeErr)
}

// syncIdentity runs one identity's pipeline. Only context cancellation is returned as an error.
func (j *SyncJob) syncIdentity(
	ctx context.Context,
	runLogger *log.Logger,
	pending *PendingWrites,
	t *tally,
	progress chan<- ProgressUpdate,
	step, total int,
	identity *models.Identity,
) error {
	logger := shared.WithLogger(runLogger, "identity", identity.ID)

	if err := j.limiter.Wait(ctx); err != nil {
		return err
	}

	j.sendProgress(progress, refreshTokenUpdate(step, total, identity.ID))
	fresh, err := j.tokens.EnsureFresh(ctx, identity)
	if err != nil {
		logger.Warn("skipping identity", "err", err)
		t.add(func(s *SyncStats) { s.Skipped++ })
		j.sendProgress(progress, identitySkippedUpdate(step, total, identity.ID, err))
		return nil
	}
	if fresh != identity {
		logger.Debug("refreshed access token", "expires", fresh.ExpirationDate)
		t.add(func(s *SyncStats) { s.Refreshed++ })
	}

	j.sendProgress(progress, pollLibraryUpdate(step, total, identity.ID))
	outcome := j.poller.Poll(ctx, fresh)

	switch outcome.Kind {
	case PollFailed:
		logger.Warn("saved tracks poll failed", "status", outcome.Status, "err", outcome.Err)
		t.add(func(s *SyncStats) { s.PollFailed++ })
		j.sendProgress(progress, identitySkippedUpdate(step, total, identity.ID, outcome.Err))
		return nil
	case PollUnchanged:
		logger.Debug("library unchanged", "status", outcome.Status)
		t.add(func(s *SyncStats) { s.Unchanged++ })
		j.sendProgress(progress, identityDoneUpdate(step, total, identity.ID, outcome.Kind))
		return nil
	}

	t.add(func(s *SyncStats) { s.Updated++ })
	newItems, watermark := Diff(outcome.Items, fresh.LastAdded)

	id, etag := fresh.ID, outcome.ETag
	pending.Go(func() error {
		if err := j.repo.SaveProgress(ctx, id, etag, watermark); err != nil {
			logger.Error("failed to save sync progress", "err", err)
			return fmt.Errorf("%w: identity %s: %v", shared.ErrPersistence, id, err)
		}
		return nil
	})

	if len(newItems) > 0 {
		j.sendProgress(progress, notifyRequesterUpdate(step, total, identity.ID, len(newItems)))
		if err := j.notifier.Notify(ctx, fresh.RequesterID, URLs(newItems)); err != nil {
			logger.Error("failed to announce new tracks", "count", len(newItems), "err", err)
			t.add(func(s *SyncStats) { s.NotifyFailed++ })
		} else {
			logger.Info("announced new tracks", "count", len(newItems))
			t.add(func(s *SyncStats) { s.Notified++ })
		}
	}

	j.sendProgress(progress, identityDoneUpdate(step, total, identity.ID, outcome.Kind))
	return nil
}
