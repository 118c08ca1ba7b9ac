package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bahikhata/bahikhata/internal/ledger"
)

// ListUnsynced returns the ids of all rows of the given kind whose synced
// flag is clear. The sync-completion path uses this to know which rows an
// attempt transmitted.
func (s *Store) ListUnsynced(ctx context.Context, kind ledger.Kind) ([]int64, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	rows, err := s.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE synced = 0 ORDER BY id`, kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced %s: %w", kind, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan unsynced id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkSynced sets the synced flag on one row. Called only by the
// sync-completion path after the remote store confirms persistence, never
// by business logic. Marking an already-synced or missing row is a no-op.
func (s *Store) MarkSynced(ctx context.Context, kind ledger.Kind, id int64) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	_, err := s.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET synced = 1 WHERE id = ?`, kind), id)
	if err != nil {
		return fmt.Errorf("failed to mark %s %d synced: %w", kind, id, err)
	}
	return nil
}

// MarkAllSynced sets the synced flag on every row of every kind. Used
// after a successful force upload of all local data.
func (s *Store) MarkAllSynced(ctx context.Context) error {
	for _, kind := range ledger.Kinds {
		if _, err := s.conn.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET synced = 1 WHERE synced = 0`, kind)); err != nil {
			return fmt.Errorf("failed to mark %s synced: %w", kind, err)
		}
	}
	return nil
}

// CountUnsynced returns the number of unsynced rows per entity kind.
func (s *Store) CountUnsynced(ctx context.Context) (map[ledger.Kind]int, error) {
	counts := make(map[ledger.Kind]int, len(ledger.Kinds))
	for _, kind := range ledger.Kinds {
		var n int
		err := s.conn.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE synced = 0`, kind)).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("failed to count unsynced %s: %w", kind, err)
		}
		counts[kind] = n
	}
	return counts, nil
}

// PurgeStale deletes demand batches that are closed, fully synced and
// older than maxAge, along with their demand rows (cascading delete).
// Financial records (bills, ledger entries) are never purged. Returns the
// number of batches removed.
func (s *Store) PurgeStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := dateToText(time.Now().UTC().Add(-maxAge))

	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM demand_batches
		WHERE closed = 1 AND synced = 1 AND demand_date < ?
		  AND NOT EXISTS (
			SELECT 1 FROM demands
			WHERE demands.batch_id = demand_batches.id AND demands.synced = 0
		  )
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale demand batches: %w", err)
	}

	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return purged, nil
}
