package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/repositories"
	"github.com/desertthunder/trackwatch/internal/services"
	"github.com/desertthunder/trackwatch/internal/shared"
	"github.com/desertthunder/trackwatch/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configSet  bool
	repo       models.IdentityRepository
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A non-nil Config skips loading the config file; a non-nil Repository replaces the configured backend.
type RunnerOpts struct {
	Config     *shared.Config
	Repository models.IdentityRepository
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	configSet := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configSet:  configSet,
		repo:       opts.Repository,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        time.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, syncCommand, identitiesCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the config file named by --config (defaults plus environment when it is
// missing) and applies the log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if !r.configSet {
		config, err := r.loadConfig(cmd.String("config"))
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	level := cmd.String("log-level")
	if level == "" {
		level = r.config.LogLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("config file not found, using defaults and environment", "path", path)
		config := shared.DefaultConfig()
		if err := shared.ApplyEnv(config); err != nil {
			return nil, err
		}
		return config, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMissingConfig, err)
	}
	return config, nil
}

// openRepository returns the injected repository or opens the configured backend,
// creating its schema when needed. The returned func releases the connection.
func (r *Runner) openRepository(ctx context.Context) (models.IdentityRepository, func() error, error) {
	if r.repo != nil {
		return r.repo, func() error { return nil }, nil
	}

	db := r.config.Database
	switch db.Driver {
	case "sqlite", "":
		conn, err := shared.NewDatabase(db.Path)
		if err != nil {
			return nil, nil, err
		}
		shared.ConfigureDatabase(conn, db.MaxOpenConns, db.MaxIdleConns)

		applied, err := shared.RunMigrations(conn)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if applied > 0 {
			r.logger.Info("applied migrations", "count", applied, "path", db.Path)
		}
		return repositories.NewSQLiteRepository(conn), conn.Close, nil
	case "postgres":
		conn, err := repositories.OpenPostgres(ctx, db.DSN)
		if err != nil {
			return nil, nil, err
		}
		shared.ConfigureDatabase(conn.DB, db.MaxOpenConns, db.MaxIdleConns)

		repo := repositories.NewPostgresRepository(conn)
		if err := repo.EnsureSchema(ctx); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return repo, conn.Close, nil
	case "redis":
		client, err := repositories.OpenRedis(ctx, db.RedisAddr, db.RedisPassword, db.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewRedisRepository(client, db.RedisPrefix), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, db.Driver)
	}
}

func (r *Runner) newSpotify() (*services.SpotifyService, error) {
	return services.NewSpotifyService(r.config.Credentials.Spotify.Map(), r.httpClient)
}

// newSyncJob wires the sync pipeline from config.
func (r *Runner) newSyncJob(repo models.IdentityRepository, spotify *services.SpotifyService) (*tasks.SyncJob, error) {
	discord := r.config.Credentials.Discord
	webhook, err := services.NewDiscordService(discord.WebhookURL, discord.ThreadID, r.httpClient)
	if err != nil {
		return nil, err
	}

	sync := r.config.Sync
	return tasks.NewSyncJob(
		repo,
		tasks.NewTokenManager(spotify, repo),
		tasks.NewPoller(spotify, sync.PageLimit),
		tasks.NewNotifier(webhook, discord.Mention),
		r.logger,
		tasks.SyncOptions{Concurrency: sync.Concurrency, RateLimit: sync.RateLimit},
	), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
