package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CurrentSchemaVersion is the schema version this build targets.
const CurrentSchemaVersion = 11

// migration is one additive schema step. Steps must be idempotent: a prior
// partial upgrade may have applied part of a step already, so table and
// column existence is always checked against the database itself, never
// inferred from the version number.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, db *sql.DB) error
}

var migrations = []migration{
	{1, "initial ledger tables", migrateV1},
	{2, "ledger entries", migrateV2},
	{3, "stock table and product stock cache", migrateV3},
	{4, "demand planning", migrateV4},
	{5, "client address", migrateV5},
	{6, "product weight", migrateV6},
	{7, "bill carry forward", migrateV7},
	{8, "synced flags", migrateV8},
	{9, "remote ids", migrateV9},
	{10, "updated-at change detection", migrateV10},
	{11, "ledger notes, meta table and indexes", migrateV11},
}

// SchemaVersion returns the schema version currently recorded in the
// database. A fresh database reports 0.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Migrate brings the database schema to CurrentSchemaVersion, applying
// every pending step in increasing version order. Fresh initialization
// (version 0) runs the exact same ordered steps as an incremental upgrade,
// so both paths produce an identical schema by construction.
//
// Any step failure is fatal: the error is returned and the store must not
// be used.
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrateTo(ctx, CurrentSchemaVersion)
}

// migrateTo applies steps up to and including target. Split out from
// Migrate so tests can produce databases at historical versions.
func (s *Store) migrateTo(ctx context.Context, target int) error {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version > target {
			break
		}
		if current >= m.version {
			continue
		}
		if err := m.apply(ctx, s.conn); err != nil {
			return fmt.Errorf("schema migration v%d (%s) failed: %w", m.version, m.name, err)
		}
		// PRAGMA does not accept bind parameters.
		if _, err := s.conn.ExecContext(ctx,
			fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", m.version, err)
		}
		current = m.version
	}

	return nil
}

// columnExists reports whether table has a column named column.
func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("failed to scan table info for %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// addColumnIfAbsent adds a column to a table unless it is already present.
// The existence check makes the step safe to re-run after a partial or
// out-of-band upgrade.
func addColumnIfAbsent(ctx context.Context, db *sql.DB, table, column, decl string) error {
	exists, err := columnExists(ctx, db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	return nil
}

func migrateV1(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		price REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS bills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL REFERENCES clients(id),
		total_amount REAL NOT NULL DEFAULT 0,
		paid_amount REAL NOT NULL DEFAULT 0,
		date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bill_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bill_id INTEGER NOT NULL REFERENCES bills(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity REAL NOT NULL,
		price REAL NOT NULL
	);
	`)
	return err
}

func migrateV2(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL REFERENCES clients(id),
		bill_id INTEGER REFERENCES bills(id),
		type TEXT NOT NULL,
		amount REAL NOT NULL DEFAULT 0,
		date TEXT NOT NULL
	);
	`)
	return err
}

func migrateV3(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS stock (
		product_id INTEGER PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
		quantity REAL NOT NULL DEFAULT 0
	);
	`); err != nil {
		return err
	}
	return addColumnIfAbsent(ctx, db, "products", "stock", "REAL NOT NULL DEFAULT 0")
}

func migrateV4(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS demand_batches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		demand_date TEXT NOT NULL,
		closed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS demands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id INTEGER NOT NULL REFERENCES demand_batches(id) ON DELETE CASCADE,
		client_id INTEGER NOT NULL REFERENCES clients(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity REAL NOT NULL,
		date TEXT NOT NULL
	);
	`)
	return err
}

func migrateV5(ctx context.Context, db *sql.DB) error {
	return addColumnIfAbsent(ctx, db, "clients", "address", "TEXT NOT NULL DEFAULT ''")
}

func migrateV6(ctx context.Context, db *sql.DB) error {
	return addColumnIfAbsent(ctx, db, "products", "weight", "REAL NOT NULL DEFAULT 0")
}

func migrateV7(ctx context.Context, db *sql.DB) error {
	return addColumnIfAbsent(ctx, db, "bills", "carry_forward", "REAL NOT NULL DEFAULT 0")
}

func migrateV8(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{
		"clients", "products", "bills", "bill_items",
		"ledger_entries", "demand_batches", "demands",
	} {
		if err := addColumnIfAbsent(ctx, db, table, "synced", "INTEGER NOT NULL DEFAULT 0"); err != nil {
			return err
		}
	}
	return nil
}

func migrateV9(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"clients", "products"} {
		if err := addColumnIfAbsent(ctx, db, table, "remote_id", "TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}
	return nil
}

func migrateV10(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"clients", "products", "bill_items"} {
		if err := addColumnIfAbsent(ctx, db, table, "updated_at", "TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}
	return nil
}

func migrateV11(ctx context.Context, db *sql.DB) error {
	if err := addColumnIfAbsent(ctx, db, "ledger_entries", "note", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bill_items_bill ON bill_items(bill_id);
	CREATE INDEX IF NOT EXISTS idx_bills_client ON bills(client_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_client ON ledger_entries(client_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_bill ON ledger_entries(bill_id);
	CREATE INDEX IF NOT EXISTS idx_demands_batch ON demands(batch_id);
	CREATE INDEX IF NOT EXISTS idx_demand_batches_date ON demand_batches(demand_date, closed);
	`)
	return err
}
