package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetStock returns the current stock quantity for a product. A missing
// stock row means zero, not an error.
func (s *Store) GetStock(ctx context.Context, productID int64) (float64, error) {
	var qty float64
	err := s.conn.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT quantity FROM stock WHERE product_id = ?), 0)
	`, productID).Scan(&qty)
	if err != nil {
		return 0, fmt.Errorf("failed to read stock: %w", err)
	}
	return qty, nil
}

// SetStock sets a product's stock to quantity, clamped to a minimum of
// zero, and refreshes the product's cached stock value.
func (s *Store) SetStock(ctx context.Context, productID int64, quantity float64) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if quantity < 0 {
		quantity = 0
	}
	if err := writeStockTx(ctx, tx, productID, quantity); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AdjustStock applies a signed delta to a product's stock. The result is
// clamped at zero: overselling is absorbed rather than rejected.
func (s *Store) AdjustStock(ctx context.Context, productID int64, delta float64) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := adjustStockTx(ctx, tx, productID, delta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// adjustStockTx applies a clamped stock delta inside an existing
// transaction. Composite operations share this so stock and the product
// cache always change together with their bill or batch.
func adjustStockTx(ctx context.Context, tx *sql.Tx, productID int64, delta float64) error {
	var current float64
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT quantity FROM stock WHERE product_id = ?), 0)
	`, productID).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read stock: %w", err)
	}

	next := current + delta
	if next < 0 {
		next = 0
	}
	return writeStockTx(ctx, tx, productID, next)
}

// writeStockTx persists an already-clamped quantity to the stock table and
// the product's denormalized cache, marking the product unsynced.
func writeStockTx(ctx context.Context, tx *sql.Tx, productID int64, quantity float64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock (product_id, quantity) VALUES (?, ?)
		ON CONFLICT(product_id) DO UPDATE SET quantity = excluded.quantity
	`, productID, quantity); err != nil {
		return fmt.Errorf("failed to write stock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET stock = ?, updated_at = ?, synced = 0 WHERE id = ?
	`, quantity, timeToText(time.Now()), productID); err != nil {
		return fmt.Errorf("failed to refresh product stock cache: %w", err)
	}
	return nil
}
