package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jobsync/internal/shared"
)

// Persisted keys shared by every jobsync process.
const (
	KeyCurrentJobID = "current_job_id"
	KeyOverlay      = "overlay"
	KeyReview       = "review"
	KeyTab          = "ui.tab"
	KeyDirection    = "ui.direction"
)

// Keys lists the keys the client reads and writes.
var Keys = []string{KeyCurrentJobID, KeyOverlay, KeyReview, KeyTab, KeyDirection}

// Backend persists opaque values by key and reports changes made by other writers.
type Backend interface {
	// Load returns the stored value and whether the key exists.
	Load(ctx context.Context, key string) ([]byte, bool, error)

	// Save stores value under key and notifies watchers.
	Save(ctx context.Context, key string, value []byte) error

	// Watch streams the new value of key each time it changes, until ctx is done.
	Watch(ctx context.Context, key string) (<-chan []byte, error)

	// Name identifies the backend in logs and metrics.
	Name() string

	Close() error
}

// Options tune how cells write to the backend.
type Options struct {
	Debounce   time.Duration
	EchoWindow time.Duration
}

// DefaultOptions returns the 250ms debounce and 100ms echo window.
func DefaultOptions() Options {
	return Options{Debounce: 250 * time.Millisecond, EchoWindow: 100 * time.Millisecond}
}

// Store hands out [Cell]s over one [Backend].
type Store struct {
	backend Backend
	opts    Options
	logger  *log.Logger
}

// New wraps backend. A nil logger discards nothing and writes to stderr.
func New(backend Backend, opts Options, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{backend: backend, opts: opts, logger: shared.WithLogger(logger, "store", backend.Name())}
}

// Open picks the backend by capability: Redis when a URL is configured and answers PING,
// then SQLite when db is non-nil, then memory.
func Open(ctx context.Context, cfg shared.StoreConfig, db *sql.DB, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	opts := Options{Debounce: cfg.Debounce, EchoWindow: cfg.EchoWindow}

	if cfg.RedisURL != "" {
		backend, err := OpenRedis(ctx, cfg.RedisURL)
		if err == nil {
			return New(backend, opts, logger), nil
		}
		logger.Warn("redis store unavailable, using local store", "error", err)
	}

	if db != nil {
		return New(NewSQLiteBackend(db, cfg.WatchInterval), opts, logger), nil
	}

	logger.Warn("no durable store configured, state will not survive restarts")
	return New(NewMemoryBackend(), opts, logger), nil
}

// Backend returns the active backend.
func (s *Store) Backend() Backend { return s.backend }

// Name returns the active backend's name.
func (s *Store) Name() string { return s.backend.Name() }

// Options returns the cell write options.
func (s *Store) Options() Options { return s.opts }

// Get reads a raw value, bypassing cells.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, ok, err := s.backend.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrKeyNotFound, key)
	}
	return value, nil
}

// Put writes a raw value immediately, bypassing cells. Live cells on the key see it as an external change.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.backend.Save(ctx, key, value); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}
