package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bahikhata/bahikhata/internal/ledger"
)

// CreateBillWithItems inserts a bill, its items, the matching stock
// decrements and exactly one bill-type ledger entry, all inside a single
// transaction. A failure at any step rolls everything back: no bill
// without its items, no stock decrement without its item.
//
// Stock is decremented by each item's quantity and floored at zero, so
// overselling is absorbed rather than rejected.
func (s *Store) CreateBillWithItems(ctx context.Context, bill ledger.Bill, items []ledger.BillItem) (*ledger.Bill, error) {
	if err := bill.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bill: %w", err)
	}
	for i := range items {
		if items[i].Quantity <= 0 {
			return nil, fmt.Errorf("invalid bill item %d: quantity must be positive", i)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	bill.Synced = false
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bills (client_id, total_amount, paid_amount, carry_forward, date, synced)
		VALUES (?, ?, ?, ?, ?, 0)
	`, bill.ClientID, bill.TotalAmount, bill.PaidAmount, bill.CarryForward, dateToText(bill.Date))
	if err != nil {
		return nil, fmt.Errorf("failed to insert bill: %w", err)
	}
	bill.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read bill id: %w", err)
	}

	now := timeToText(time.Now())
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bill_items (bill_id, product_id, quantity, price, updated_at, synced)
			VALUES (?, ?, ?, ?, ?, 0)
		`, bill.ID, item.ProductID, item.Quantity, item.Price, now); err != nil {
			return nil, fmt.Errorf("failed to insert bill item: %w", err)
		}
		if err := adjustStockTx(ctx, tx, item.ProductID, -item.Quantity); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (client_id, bill_id, type, amount, date, note, synced)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, bill.ClientID, bill.ID, ledger.EntryBill, bill.TotalAmount,
		dateToText(bill.Date), fmt.Sprintf("bill #%d", bill.ID)); err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &bill, nil
}

// UpdateBillWithItems replaces a bill's row and its full item list, then
// upserts the bill-type ledger entry so it mirrors the new total. No stock
// re-adjustment is performed for the replaced items; callers that need
// stock correctness on edit use AdjustSingleBillItem instead.
func (s *Store) UpdateBillWithItems(ctx context.Context, bill ledger.Bill, items []ledger.BillItem) error {
	if err := bill.Validate(); err != nil {
		return fmt.Errorf("invalid bill: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE bills
		SET client_id = ?, total_amount = ?, paid_amount = ?, carry_forward = ?, date = ?, synced = 0
		WHERE id = ?
	`, bill.ClientID, bill.TotalAmount, bill.PaidAmount, bill.CarryForward,
		dateToText(bill.Date), bill.ID)
	if err != nil {
		return fmt.Errorf("failed to update bill: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bill_items WHERE bill_id = ?`, bill.ID); err != nil {
		return fmt.Errorf("failed to delete bill items: %w", err)
	}

	now := timeToText(time.Now())
	for _, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("invalid bill item: quantity must be positive")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bill_items (bill_id, product_id, quantity, price, updated_at, synced)
			VALUES (?, ?, ?, ?, ?, 0)
		`, bill.ID, item.ProductID, item.Quantity, item.Price, now); err != nil {
			return fmt.Errorf("failed to insert bill item: %w", err)
		}
	}

	if err := upsertBillLedgerEntryTx(ctx, tx, bill); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AdjustSingleBillItem changes one item's quantity, applies the matching
// stock delta (old minus new, floored at zero), and recomputes the parent
// bill's total as the exact sum of quantity*price over its current items.
func (s *Store) AdjustSingleBillItem(ctx context.Context, itemID int64, newQuantity float64) error {
	if newQuantity <= 0 {
		return fmt.Errorf("new quantity must be positive (got %v)", newQuantity)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		billID    int64
		productID int64
		oldQty    float64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT bill_id, product_id, quantity FROM bill_items WHERE id = ?
	`, itemID).Scan(&billID, &productID, &oldQty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read bill item: %w", err)
	}

	if err := adjustStockTx(ctx, tx, productID, oldQty-newQuantity); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE bill_items SET quantity = ?, updated_at = ?, synced = 0 WHERE id = ?
	`, newQuantity, timeToText(time.Now()), itemID); err != nil {
		return fmt.Errorf("failed to update bill item: %w", err)
	}

	var total float64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity * price), 0) FROM bill_items WHERE bill_id = ?
	`, billID).Scan(&total)
	if err != nil {
		return fmt.Errorf("failed to recompute bill total: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE bills SET total_amount = ?, synced = 0 WHERE id = ?
	`, total, billID); err != nil {
		return fmt.Errorf("failed to update bill total: %w", err)
	}

	var bill ledger.Bill
	var date string
	err = tx.QueryRowContext(ctx, `
		SELECT id, client_id, total_amount, date FROM bills WHERE id = ?
	`, billID).Scan(&bill.ID, &bill.ClientID, &bill.TotalAmount, &date)
	if err != nil {
		return fmt.Errorf("failed to read bill: %w", err)
	}
	bill.Date = textToDate(date)

	if err := upsertBillLedgerEntryTx(ctx, tx, bill); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// upsertBillLedgerEntryTx updates the bill-type ledger entry for a bill to
// mirror its current total, inserting the entry if none exists yet.
func upsertBillLedgerEntryTx(ctx context.Context, tx *sql.Tx, bill ledger.Bill) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE ledger_entries
		SET client_id = ?, amount = ?, date = ?, synced = 0
		WHERE bill_id = ? AND type = ?
	`, bill.ClientID, bill.TotalAmount, dateToText(bill.Date), bill.ID, ledger.EntryBill)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (client_id, bill_id, type, amount, date, note, synced)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, bill.ClientID, bill.ID, ledger.EntryBill, bill.TotalAmount,
		dateToText(bill.Date), fmt.Sprintf("bill #%d", bill.ID)); err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// GetBill retrieves a bill by id.
func (s *Store) GetBill(ctx context.Context, id int64) (*ledger.Bill, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, client_id, total_amount, paid_amount, carry_forward, date, synced
		FROM bills WHERE id = ?
	`, id)
	return scanBill(row)
}

// ListBillsByClient returns a client's bills, most recent first.
func (s *Store) ListBillsByClient(ctx context.Context, clientID int64) ([]ledger.Bill, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, client_id, total_amount, paid_amount, carry_forward, date, synced
		FROM bills WHERE client_id = ?
		ORDER BY date DESC, id DESC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []ledger.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *b)
	}
	return bills, rows.Err()
}

// GetBillItems returns a bill's items in insertion order.
func (s *Store) GetBillItems(ctx context.Context, billID int64) ([]ledger.BillItem, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, bill_id, product_id, quantity, price, updated_at, synced
		FROM bill_items WHERE bill_id = ?
		ORDER BY id
	`, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bill items: %w", err)
	}
	defer rows.Close()

	var items []ledger.BillItem
	for rows.Next() {
		var (
			item      ledger.BillItem
			updatedAt string
			synced    int
		)
		if err := rows.Scan(&item.ID, &item.BillID, &item.ProductID,
			&item.Quantity, &item.Price, &updatedAt, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan bill item: %w", err)
		}
		item.UpdatedAt = textToTime(updatedAt)
		item.Synced = synced != 0
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteBill removes a bill, its items (cascading delete) and its ledger
// entry in one transaction. Stock is not restored; billing history
// deletion is bookkeeping, not a return.
func (s *Store) DeleteBill(ctx context.Context, id int64) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM ledger_entries WHERE bill_id = ? AND type = ?
	`, id, ledger.EntryBill); err != nil {
		return fmt.Errorf("failed to delete ledger entry: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM bills WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanBill(row rowScanner) (*ledger.Bill, error) {
	var (
		b      ledger.Bill
		date   string
		synced int
	)
	err := row.Scan(&b.ID, &b.ClientID, &b.TotalAmount, &b.PaidAmount,
		&b.CarryForward, &date, &synced)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan bill: %w", err)
	}
	b.Date = textToDate(date)
	b.Synced = synced != 0
	return &b, nil
}
