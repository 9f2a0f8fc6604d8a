package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable CounterStore for single-node deployments where
// running Redis is not worth it. Counters survive process restarts within
// a window.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the counter database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent increments.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, now: time.Now}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS rate_counters (
		key TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`)
	return err
}

// WithClock overrides the store's clock for expiry checks in tests.
func (s *SQLiteStore) WithClock(now func() time.Time) *SQLiteStore {
	s.now = now
	return s
}

// IncrementAndGet implements CounterStore. A row whose expiry has passed
// is treated as absent: the upsert restarts it at count=1 with a fresh
// expiry instead of carrying the stale window's count forward.
func (s *SQLiteStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	nowMs := s.now().UnixMilli()
	expiresAt := nowMs + ttl.Milliseconds()

	var count int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO rate_counters (key, count, expires_at) VALUES (?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = CASE WHEN rate_counters.expires_at <= ? THEN 1 ELSE rate_counters.count + 1 END,
			expires_at = CASE WHEN rate_counters.expires_at <= ? THEN excluded.expires_at ELSE rate_counters.expires_at END
		RETURNING count`,
		key, expiresAt, nowMs, nowMs,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: sqlite incr: %v", ErrStoreUnavailable, err)
	}

	return count, nil
}

// Get implements CounterStore. Rows whose expiry has passed read as zero,
// the same as IncrementAndGet treats them.
func (s *SQLiteStore) Get(ctx context.Context, key string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM rate_counters WHERE key = ? AND expires_at > ?`,
		key, s.now().UnixMilli(),
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: sqlite get: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

// PurgeExpired deletes rows whose window has ended. Expired rows are
// already invisible to IncrementAndGet; this reclaims space.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rate_counters WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to purge expired counters: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
