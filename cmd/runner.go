package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/desertthunder/jobsync/internal/repositories"
	"github.com/desertthunder/jobsync/internal/services"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/store"
	"github.com/desertthunder/jobsync/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, store and client are opened on first use and released by [Runner.Close].
type Runner struct {
	config     *shared.Config
	configPath string
	jobs       services.JobsClient
	logger     *log.Logger
	output     io.Writer
	plain      bool
	lockPath   string

	db      *sql.DB
	ownsDB  bool
	store   *store.Store
	ownsKV  bool
	history *repositories.JobRepository
	client  *tasks.Client
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Jobs       services.JobsClient
	Logger     *log.Logger
	Output     io.Writer
	// Plain forces ASCII tables and no color. It is set automatically when Output is not a terminal.
	Plain bool
	// DB and Store replace the configured database and state store.
	DB    *sql.DB
	Store *store.Store
	// LockPath overrides the poller lock path; "-" disables locking.
	LockPath string
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Jobs == nil {
		cfg := opts.Config.API
		httpClient := services.NewHTTPClient(context.Background(), cfg.Token, cfg.Timeout)
		opts.Jobs = services.NewJobsService(services.NewAPIService(cfg.BaseURL, httpClient, services.WithRateLimit(cfg.RequestsPerSecond)))
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		jobs:       opts.Jobs,
		logger:     opts.Logger,
		output:     opts.Output,
		plain:      opts.Plain || !isTerminal(opts.Output),
		lockPath:   opts.LockPath,
		db:         opts.DB,
		store:      opts.Store,
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SetLogger replaces the logger for the remaining commands; the TUI uses it to move logs to a file.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenMigrated(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db, r.ownsDB = db, true
	return db, nil
}

func (r *Runner) openStore(ctx context.Context) (*store.Store, error) {
	if r.store != nil {
		return r.store, nil
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(ctx, r.config.Store, db, r.logger)
	if err != nil {
		return nil, err
	}
	r.store, r.ownsKV = s, true
	return s, nil
}

func (r *Runner) jobHistory() (*repositories.JobRepository, error) {
	if r.history != nil {
		return r.history, nil
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	r.history = repositories.NewJobRepository(db)
	return r.history, nil
}

// open returns the session client, creating it on first use.
func (r *Runner) open(ctx context.Context) (*tasks.Client, error) {
	if r.client != nil {
		return r.client, nil
	}

	s, err := r.openStore(ctx)
	if err != nil {
		return nil, err
	}
	history, err := r.jobHistory()
	if err != nil {
		return nil, err
	}

	client, err := tasks.NewClient(ctx, tasks.ClientOptions{
		Config:   r.config,
		Store:    s,
		Jobs:     r.jobs,
		History:  history,
		Logger:   r.logger,
		LockPath: r.lockPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	if client.Observer() {
		r.logger.Warn("another jobsync process owns the poller; running as observer")
	}
	r.client = client
	return client, nil
}

// Close releases the client, store and database in that order.
func (r *Runner) Close(ctx context.Context) error {
	var errs []error
	if r.client != nil {
		errs = append(errs, r.client.Close(ctx))
		r.client = nil
	}
	if r.store != nil && r.ownsKV {
		errs = append(errs, r.store.Close())
		r.store = nil
	}
	if r.db != nil && r.ownsDB {
		errs = append(errs, r.db.Close())
		r.db = nil
	}
	return errors.Join(errs...)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
