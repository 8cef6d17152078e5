// Package sqlite provides a SQLite-backed pool ledger.
//
// Amounts are uint64 and are stored bit-for-bit in signed INTEGER columns;
// queries never compare or sum amounts in SQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sqlitemigrate "github.com/louisbranch/cellarpool/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists the pool ledger in SQLite.
type Store struct {
	mu      sync.Mutex
	sqlDB   *sql.DB
	keyring *integrity.Keyring
}

// Option configures a Store.
type Option func(*Store)

// WithKeyring signs appended events with keyring.
func WithKeyring(keyring *integrity.Keyring) Option {
	return func(s *Store) {
		s.keyring = keyring
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

// Open opens a SQLite pool store and applies embedded migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time keeps units of work serialized.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	s := &Store{sqlDB: sqlDB}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.sqlDB.Close()
	s.sqlDB = nil
	return err
}

// Update runs fn inside one SQLite transaction and advances the height.
func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sqlDB == nil {
		return storage.ErrClosed
	}

	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	var height int64
	if err := sqlTx.QueryRowContext(ctx, `SELECT height FROM ledger_meta WHERE id = 1`).Scan(&height); err != nil {
		return fmt.Errorf("load height: %w", err)
	}
	height++
	if _, err := sqlTx.ExecContext(ctx, `UPDATE ledger_meta SET height = ? WHERE id = 1`, height); err != nil {
		return fmt.Errorf("advance height: %w", err)
	}

	if err := fn(&tx{sqlTx: sqlTx, height: uint64(height), keyring: s.keyring, writable: true}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View runs fn inside a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sqlDB == nil {
		return storage.ErrClosed
	}

	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	var height int64
	if err := sqlTx.QueryRowContext(ctx, `SELECT height FROM ledger_meta WHERE id = 1`).Scan(&height); err != nil {
		return fmt.Errorf("load height: %w", err)
	}
	return fn(&tx{sqlTx: sqlTx, height: uint64(height), keyring: s.keyring})
}

// ListUnpublished returns committed events without a published_at mark in
// commit order.
func (s *Store) ListUnpublished(ctx context.Context, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sqlDB == nil {
		return nil, storage.ErrClosed
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE published_at IS NULL ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unpublished events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// MarkPublished stamps published_at on keys.
func (s *Store) MarkPublished(ctx context.Context, keys []storage.EventKey, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sqlDB == nil {
		return storage.ErrClosed
	}

	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()
	for _, key := range keys {
		if _, err := sqlTx.ExecContext(ctx,
			`UPDATE events SET published_at = ? WHERE pool_id = ? AND seq = ? AND published_at IS NULL`,
			toMillis(at), int64(key.PoolID), int64(key.Seq),
		); err != nil {
			return fmt.Errorf("mark event published: %w", err)
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3lib.SQLITE_CONSTRAINT || code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
}
