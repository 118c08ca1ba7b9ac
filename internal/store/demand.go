package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bahikhata/bahikhata/internal/ledger"
)

// FindOrCreateOpenBatch returns the open demand batch for the given date,
// creating one if none exists. At most one open batch exists per date;
// closed batches for the same date are ignored.
func (s *Store) FindOrCreateOpenBatch(ctx context.Context, demandDate time.Time) (*ledger.DemandBatch, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	batch, err := findOrCreateOpenBatchTx(ctx, tx, demandDate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return batch, nil
}

func findOrCreateOpenBatchTx(ctx context.Context, tx *sql.Tx, demandDate time.Time) (*ledger.DemandBatch, error) {
	date := dateToText(demandDate)

	var batch ledger.DemandBatch
	var synced int
	err := tx.QueryRowContext(ctx, `
		SELECT id, demand_date, synced FROM demand_batches
		WHERE demand_date = ? AND closed = 0
	`, date).Scan(&batch.ID, &date, &synced)
	if err == nil {
		batch.DemandDate = textToDate(date)
		batch.Synced = synced != 0
		return &batch, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find open batch: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO demand_batches (demand_date, closed, synced) VALUES (?, 0, 0)
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to create demand batch: %w", err)
	}
	batch.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read batch id: %w", err)
	}
	batch.DemandDate = textToDate(date)
	return &batch, nil
}

// GetDemandBatch retrieves a demand batch by id.
func (s *Store) GetDemandBatch(ctx context.Context, id int64) (*ledger.DemandBatch, error) {
	var (
		batch  ledger.DemandBatch
		date   string
		closed int
		synced int
	)
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, demand_date, closed, synced FROM demand_batches WHERE id = ?
	`, id).Scan(&batch.ID, &date, &closed, &synced)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read demand batch: %w", err)
	}
	batch.DemandDate = textToDate(date)
	batch.Closed = closed != 0
	batch.Synced = synced != 0
	return &batch, nil
}

// InsertDemand adds a demand row to an open batch. Writes to a closed
// batch are rejected with ErrBatchClosed: closed batches are terminal.
func (s *Store) InsertDemand(ctx context.Context, d ledger.Demand) (*ledger.Demand, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid demand: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireOpenBatchTx(ctx, tx, d.BatchID); err != nil {
		return nil, err
	}

	if d.Date.IsZero() {
		d.Date = time.Now().UTC()
	}
	d.Synced = false
	res, err := tx.ExecContext(ctx, `
		INSERT INTO demands (batch_id, client_id, product_id, quantity, date, synced)
		VALUES (?, ?, ?, ?, ?, 0)
	`, d.BatchID, d.ClientID, d.ProductID, d.Quantity, dateToText(d.Date))
	if err != nil {
		return nil, fmt.Errorf("failed to insert demand: %w", err)
	}
	d.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read demand id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &d, nil
}

// ListDemands returns all demand rows in a batch in insertion order.
func (s *Store) ListDemands(ctx context.Context, batchID int64) ([]ledger.Demand, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, batch_id, client_id, product_id, quantity, date, synced
		FROM demands WHERE batch_id = ?
		ORDER BY id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list demands: %w", err)
	}
	defer rows.Close()

	var demands []ledger.Demand
	for rows.Next() {
		var (
			d      ledger.Demand
			date   string
			synced int
		)
		if err := rows.Scan(&d.ID, &d.BatchID, &d.ClientID, &d.ProductID,
			&d.Quantity, &date, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan demand: %w", err)
		}
		d.Date = textToDate(date)
		d.Synced = synced != 0
		demands = append(demands, d)
	}
	return demands, rows.Err()
}

// CloseDemandBatch commits a batch: the total demanded quantity per
// product is added to stock, and the batch is marked closed. Closing is a
// one-way transition; re-closing returns ErrBatchClosed. When
// createNextPeriod is set, the open batch for the following day is found
// or created and returned (nil otherwise).
func (s *Store) CloseDemandBatch(ctx context.Context, batchID int64, createNextPeriod bool) (*ledger.DemandBatch, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var date string
	var closed int
	err = tx.QueryRowContext(ctx, `
		SELECT demand_date, closed FROM demand_batches WHERE id = ?
	`, batchID).Scan(&date, &closed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read demand batch: %w", err)
	}
	if closed != 0 {
		return nil, ErrBatchClosed
	}

	// Aggregate demanded quantity per product; increments are always
	// non-negative so no clamping is needed here.
	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, SUM(quantity) FROM demands
		WHERE batch_id = ?
		GROUP BY product_id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate demands: %w", err)
	}
	type productTotal struct {
		productID int64
		total     float64
	}
	var totals []productTotal
	for rows.Next() {
		var pt productTotal
		if err := rows.Scan(&pt.productID, &pt.total); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan demand total: %w", err)
		}
		totals = append(totals, pt)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, pt := range totals {
		if err := adjustStockTx(ctx, tx, pt.productID, pt.total); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE demand_batches SET closed = 1, synced = 0 WHERE id = ?
	`, batchID); err != nil {
		return nil, fmt.Errorf("failed to close demand batch: %w", err)
	}

	var next *ledger.DemandBatch
	if createNextPeriod {
		nextDate := textToDate(date).AddDate(0, 0, 1)
		next, err = findOrCreateOpenBatchTx(ctx, tx, nextDate)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return next, nil
}

// requireOpenBatchTx verifies the batch exists and is still open.
func requireOpenBatchTx(ctx context.Context, tx *sql.Tx, batchID int64) error {
	var closed int
	err := tx.QueryRowContext(ctx,
		`SELECT closed FROM demand_batches WHERE id = ?`, batchID).Scan(&closed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read demand batch: %w", err)
	}
	if closed != 0 {
		return ErrBatchClosed
	}
	return nil
}
