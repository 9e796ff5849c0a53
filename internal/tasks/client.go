package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/services"
	"github.com/desertthunder/jobsync/internal/shared"
	"github.com/desertthunder/jobsync/internal/store"
	"github.com/gofrs/flock"
)

// LockFile is the poller lock created in the store data directory.
const LockFile = "jobsync.lock"

// ClientOptions are the dependencies of [NewClient].
type ClientOptions struct {
	Config  *shared.Config
	Store   *store.Store
	Jobs    services.JobsClient
	History JobRecorder
	Logger  *log.Logger
	// LockPath overrides <data_dir>/jobsync.lock. Set to "-" to skip locking.
	LockPath string
}

// Client is one session of the job client: persisted cells plus the components that drive them.
//
// Only one process per data directory owns the poller; the others open in observer mode and follow
// the persisted state without polling or writing the current job id.
type Client struct {
	Session    *Session
	Ledger     *Ledger
	Reconciler *Reconciler
	Poller     *Poller
	Finalizer  *Finalizer
	Dismiss    *AutoDismiss
	Health     *HealthMonitor

	CurrentJob *store.Cell[string]
	Overlay    *store.Cell[models.Overlay]
	Review     *store.Cell[models.Review]
	Direction  *store.Cell[models.Direction]
	Tab        *store.Cell[string]

	cfg    *shared.Config
	store  *store.Store
	lock   *flock.Flock
	logger *log.Logger
}

// NewClient binds the persisted cells and builds the components. It waits for the cells to load.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.Store == nil || opts.Jobs == nil {
		return nil, fmt.Errorf("%w: store and jobs client are required", shared.ErrMissingArgument)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = shared.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	c := &Client{
		CurrentJob: store.NewCell(opts.Store, store.KeyCurrentJobID, ""),
		Overlay:    store.NewCell(opts.Store, store.KeyOverlay, models.OverlayNone),
		Review:     store.NewCell(opts.Store, store.KeyReview, models.Review{}),
		Direction:  store.NewCell(opts.Store, store.KeyDirection, models.Forward),
		Tab:        store.NewCell(opts.Store, store.KeyTab, ""),
		cfg:        cfg,
		store:      opts.Store,
		logger:     logger,
	}

	for _, ready := range []<-chan struct{}{
		c.CurrentJob.Ready(), c.Overlay.Ready(), c.Review.Ready(), c.Direction.Ready(), c.Tab.Ready(),
	} {
		select {
		case <-ready:
		case <-ctx.Done():
			c.closeCells()
			return nil, fmt.Errorf("%w: loading session state: %v", shared.ErrTimeout, ctx.Err())
		}
	}

	c.Session = NewSession(c.Overlay)
	c.Ledger = NewLedger()
	c.Reconciler = NewReconciler(c.Review, opts.Jobs, cfg.User.ID)
	c.Poller = NewPoller(PollerDeps{
		Jobs:       opts.Jobs,
		Current:    c.CurrentJob,
		Direction:  c.Direction,
		Session:    c.Session,
		Ledger:     c.Ledger,
		Reconciler: c.Reconciler,
		History:    opts.History,
		Logger:     logger,
	}, PollerConfigFrom(cfg.Poll))
	c.Finalizer = NewFinalizer(opts.Jobs, c.Poller, c.Session, c.Ledger, c.Reconciler, logger)
	c.Dismiss = NewAutoDismiss(c.Session, c.Reconciler, cfg.Dismiss)
	c.Dismiss.OnDismiss(c.forgetEmptyJob)
	c.Health = NewHealthMonitor(opts.Jobs, cfg.Health.Interval, logger)

	if err := c.acquire(opts.LockPath); err != nil {
		c.Close(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *Client) acquire(path string) error {
	if path == "-" {
		return nil
	}
	if path == "" {
		path = filepath.Join(c.cfg.Store.DataDir, LockFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire poller lock: %w", err)
	}
	if !ok {
		c.logger.Warn("another jobsync process owns the poller, running as observer", "lock", path)
		c.Poller.SetObserver(true)
		return nil
	}
	c.lock = lock
	return nil
}

// forgetEmptyJob drops a job that had nothing to review once its overlay was dismissed, so it is not
// adopted again on the next start.
func (c *Client) forgetEmptyJob() {
	if c.Poller.Observer() || c.Poller.Polling() {
		return
	}
	if c.Poller.LastStatus() == models.JobReadyToFinalize {
		c.Poller.Clear()
	}
}

// Observer reports whether this client follows another process instead of polling.
func (c *Client) Observer() bool {
	return c.Poller.Observer()
}

// Resume rejoins the user's in-flight job.
func (c *Client) Resume(ctx context.Context) string {
	return c.Poller.Resume(ctx, c.cfg.User.ID)
}

// Start begins a sync for the configured user. An empty direction reuses the last one chosen.
func (c *Client) Start(ctx context.Context, req StartRequest) (string, error) {
	if req.Direction == "" {
		req.Direction = c.Direction.Get()
	}
	if req.Direction == "" {
		req.Direction = models.Forward
	}
	if req.UserID == "" {
		req.UserID = c.cfg.User.ID
	}
	if req.UserID == "" {
		return "", shared.ErrMissingUser
	}
	return c.Poller.Start(ctx, req)
}

// Finalize submits the reviewed songs of the current job.
func (c *Client) Finalize(ctx context.Context) error {
	return c.Finalizer.Finalize(ctx)
}

// Close stops every loop and timer, writes pending cell changes and releases the poller lock.
func (c *Client) Close(ctx context.Context) error {
	var errs []error

	if c.Poller != nil {
		c.Poller.Stop()
		c.Poller.Wait()
	}
	if c.Dismiss != nil {
		c.Dismiss.Close()
	}
	if c.Health != nil {
		c.Health.Close()
	}
	if c.Ledger != nil {
		c.Ledger.Close()
	}

	for _, flush := range []func(context.Context) error{
		c.CurrentJob.Flush, c.Overlay.Flush, c.Review.Flush, c.Direction.Flush, c.Tab.Flush,
	} {
		if err := flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closeCells()

	if c.lock != nil {
		if err := c.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release poller lock: %w", err))
		}
		c.lock = nil
	}
	return errors.Join(errs...)
}

func (c *Client) closeCells() {
	c.CurrentJob.Close()
	c.Overlay.Close()
	c.Review.Close()
	c.Direction.Close()
	c.Tab.Close()
}

// Snapshot is a read-only view of the session for status output.
type Snapshot struct {
	JobID      string           `json:"job_id,omitempty"`
	Direction  models.Direction `json:"direction"`
	Status     models.JobStatus `json:"status,omitempty"`
	Overlay    models.Overlay   `json:"overlay"`
	Finalizing bool             `json:"finalizing"`
	Observer   bool             `json:"observer"`
	Backend    string           `json:"backend"`
	Connected  bool             `json:"connected"`
	CanFinal   bool             `json:"can_finalize"`
	Forward    Counts           `json:"forward"`
	Reverse    Counts           `json:"reverse"`
	Message    string           `json:"message,omitempty"`
	Processes  []models.Process `json:"processes"`
}

func (c *Client) Snapshot() Snapshot {
	return Snapshot{
		JobID:      c.Poller.CurrentJobID(),
		Direction:  c.Poller.JobDirection(),
		Status:     c.Poller.LastStatus(),
		Overlay:    c.Session.Overlay(),
		Finalizing: c.Session.Finalizing(),
		Observer:   c.Poller.Observer(),
		Backend:    c.store.Name(),
		Connected:  c.Health.Connected(),
		CanFinal:   c.Reconciler.CanFinalize(),
		Forward:    c.Reconciler.Counts(models.Forward),
		Reverse:    c.Reconciler.Counts(models.Reverse),
		Message:    c.Session.Status().Message,
		Processes:  c.Ledger.Processes(),
	}
}
