package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultWatchInterval = 500 * time.Millisecond

// SQLiteBackend stores values in the kv_store table created by the embedded migrations.
//
// Every save bumps the row's version; Watch polls that column, so writes from other
// processes sharing the database file are observed.
type SQLiteBackend struct {
	db       *sql.DB
	interval time.Duration
}

// NewSQLiteBackend wraps a migrated database. interval is the Watch poll period.
func NewSQLiteBackend(db *sql.DB, interval time.Duration) *SQLiteBackend {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &SQLiteBackend{db: db, interval: interval}
}

func (s *SQLiteBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteBackend) Save(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, version, updated_at)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			version = kv_store.version + 1,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) version(ctx context.Context, key string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, "SELECT version FROM kv_store WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func (s *SQLiteBackend) Watch(ctx context.Context, key string) (<-chan []byte, error) {
	last, err := s.version(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", key, err)
	}

	ch := make(chan []byte, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			v, err := s.version(ctx, key)
			if err != nil || v == last {
				continue
			}
			last = v

			value, ok, err := s.Load(ctx, key)
			if err != nil || !ok {
				continue
			}

			select {
			case ch <- value:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (s *SQLiteBackend) Name() string { return "sqlite" }

// Close leaves the database open; it is owned by the caller.
func (s *SQLiteBackend) Close() error { return nil }
