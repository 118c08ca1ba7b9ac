// Package store implements the offline-first persistence layer for the
// ledger: an embedded SQLite database owning clients, products, stock,
// bills, ledger entries and demand planning rows.
//
// The database runs fully local using SQLite with WAL mode. All composite
// write operations execute inside a single transaction so that stock,
// bills, items and ledger entries are never observable in a
// partially-updated state.
//
// Callers must bring the schema to the current version with Migrate before
// using any other operation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Sentinel errors returned by store operations.
var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNameTaken is returned when inserting or renaming a client or
	// product to a name that is already in use.
	ErrNameTaken = errors.New("name already taken")
	// ErrBatchClosed is returned on any write to a demand batch that has
	// already been closed.
	ErrBatchClosed = errors.New("demand batch is closed")
)

// Store wraps the embedded SQLite connection.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads,
// a 5 second busy timeout, and foreign keys enforced. The caller MUST
// call Close() when done, and Migrate() before any other operation.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them, not just
	// the one that happens to run an Exec.
	dsn := "file:" + path +
		"?_pragma=journal_mode(wal)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(on)"

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &Store{conn: conn, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// DeviceID returns the stable installation identifier for this database,
// generating and persisting one on first call. The remote store uses it to
// tell apart uploads from different devices of the same account.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	var id string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = 'device_id'`).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}

	id = uuid.NewString()
	if _, err := s.conn.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('device_id', ?)
		 ON CONFLICT(key) DO NOTHING`, id); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}

	// Re-read in case a concurrent caller won the insert.
	if err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = 'device_id'`).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}
	return id, nil
}

// IsEmpty reports whether the store holds no business data yet. Used at
// first run to decide whether to restore state from the remote store.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM clients)
		     + (SELECT COUNT(*) FROM products)
		     + (SELECT COUNT(*) FROM bills)
	`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count rows: %w", err)
	}
	return n == 0, nil
}

// timeToText formats a timestamp for storage.
func timeToText(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// textToTime parses a stored timestamp, returning the zero time for
// values written before the column existed.
func textToTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// dateToText formats a calendar date (demand dates, bill dates) for
// storage, dropping the time component.
func dateToText(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// textToDate parses a stored calendar date.
func textToDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
