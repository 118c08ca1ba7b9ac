package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

// openBare opens a database without migrating it.
func openBare(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// schemaSnapshot captures every table's column layout (name, type,
// not-null, default, primary key) plus all index names, so two databases
// can be compared structurally.
func schemaSnapshot(t *testing.T, s *Store) map[string][]string {
	t.Helper()
	ctx := context.Background()

	snapshot := make(map[string][]string)

	rows, err := s.conn.QueryContext(ctx, `
		SELECT name, type FROM sqlite_master
		WHERE type IN ('table', 'index') AND name NOT LIKE 'sqlite_%'
	`)
	if err != nil {
		t.Fatalf("failed to list schema objects: %v", err)
	}
	defer rows.Close()

	var tables, indexes []string
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			t.Fatalf("failed to scan schema object: %v", err)
		}
		if typ == "table" {
			tables = append(tables, name)
		} else {
			indexes = append(indexes, name)
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("failed to iterate schema objects: %v", err)
	}

	sort.Strings(indexes)
	snapshot["__indexes__"] = indexes

	for _, table := range tables {
		cols, err := s.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
		if err != nil {
			t.Fatalf("failed to inspect table %s: %v", table, err)
		}
		var layout []string
		for cols.Next() {
			var (
				cid     int
				name    string
				ctype   string
				notnull int
				dflt    sql.NullString
				pk      int
			)
			if err := cols.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
				cols.Close()
				t.Fatalf("failed to scan table info: %v", err)
			}
			layout = append(layout, fmt.Sprintf("%s|%s|%d|%s|%d", name, ctype, notnull, dflt.String, pk))
		}
		cols.Close()
		snapshot[table] = layout
	}

	return snapshot
}

func TestFreshMigration(t *testing.T) {
	s := openBare(t)
	ctx := context.Background()

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 0 {
		t.Fatalf("expected fresh database at version 0, got %d", version)
	}

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	version, err = s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("expected version %d after migration, got %d", CurrentSchemaVersion, version)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	s := openBare(t)
	ctx := context.Background()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate failed: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

// TestIncrementalMatchesFresh upgrades databases left at every historical
// version and checks each ends up structurally identical to a fresh
// current-version creation.
func TestIncrementalMatchesFresh(t *testing.T) {
	ctx := context.Background()

	fresh := openBare(t)
	if err := fresh.Migrate(ctx); err != nil {
		t.Fatalf("fresh Migrate failed: %v", err)
	}
	want := schemaSnapshot(t, fresh)

	for v := 1; v < CurrentSchemaVersion; v++ {
		t.Run(fmt.Sprintf("from_v%d", v), func(t *testing.T) {
			s := openBare(t)
			if err := s.migrateTo(ctx, v); err != nil {
				t.Fatalf("migrateTo(%d) failed: %v", v, err)
			}

			version, err := s.SchemaVersion(ctx)
			if err != nil {
				t.Fatalf("SchemaVersion failed: %v", err)
			}
			if version != v {
				t.Fatalf("expected version %d, got %d", v, version)
			}

			if err := s.Migrate(ctx); err != nil {
				t.Fatalf("Migrate from v%d failed: %v", v, err)
			}

			got := schemaSnapshot(t, s)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("schema after upgrade from v%d differs from fresh creation:\ngot:  %v\nwant: %v", v, got, want)
			}
		})
	}
}

// TestPartialUpgradeTolerated verifies migration steps check the database
// itself rather than trusting the version number: a column added out of
// band must not break the upgrade.
func TestPartialUpgradeTolerated(t *testing.T) {
	s := openBare(t)
	ctx := context.Background()

	if err := s.migrateTo(ctx, 4); err != nil {
		t.Fatalf("migrateTo(4) failed: %v", err)
	}

	// Simulate a partially-applied v5: the column exists but the version
	// was never bumped.
	if _, err := s.conn.ExecContext(ctx,
		`ALTER TABLE clients ADD COLUMN address TEXT NOT NULL DEFAULT ''`); err != nil {
		t.Fatalf("failed to pre-add column: %v", err)
	}

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate over partial upgrade failed: %v", err)
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("expected version %d, got %d", CurrentSchemaVersion, version)
	}
}
