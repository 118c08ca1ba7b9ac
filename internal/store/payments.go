package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bahikhata/bahikhata/internal/ledger"
)

// RecordPayment appends a payment-type ledger entry against a client's
// balance. billID may be 0 for payments not tied to a particular bill.
func (s *Store) RecordPayment(ctx context.Context, clientID, billID int64, amount float64, note string) (*ledger.LedgerEntry, error) {
	entry := ledger.LedgerEntry{
		ClientID: clientID,
		BillID:   billID,
		Type:     ledger.EntryPayment,
		Amount:   amount,
		Date:     time.Now().UTC(),
		Note:     note,
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payment: %w", err)
	}

	var billRef any
	if billID != 0 {
		billRef = billID
	}
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO ledger_entries (client_id, bill_id, type, amount, date, note, synced)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, clientID, billRef, ledger.EntryPayment, amount, dateToText(entry.Date), note)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	entry.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entry id: %w", err)
	}
	return &entry, nil
}

// ListLedgerByClient returns a client's ledger entries, most recent first.
func (s *Store) ListLedgerByClient(ctx context.Context, clientID int64) ([]ledger.LedgerEntry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, client_id, bill_id, type, amount, date, note, synced
		FROM ledger_entries WHERE client_id = ?
		ORDER BY date DESC, id DESC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.LedgerEntry
	for rows.Next() {
		var (
			e      ledger.LedgerEntry
			billID sql.NullInt64
			date   string
			synced int
		)
		if err := rows.Scan(&e.ID, &e.ClientID, &billID, &e.Type,
			&e.Amount, &date, &e.Note, &synced); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		if billID.Valid {
			e.BillID = billID.Int64
		}
		e.Date = textToDate(date)
		e.Synced = synced != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClientBalance returns a client's outstanding balance: bill charges minus
// payments received. The result feeds the carry-forward on the client's
// next bill.
func (s *Store) ClientBalance(ctx context.Context, clientID int64) (float64, error) {
	var balance float64
	err := s.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE type WHEN ? THEN amount ELSE -amount END), 0)
		FROM ledger_entries WHERE client_id = ?
	`, ledger.EntryBill, clientID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to compute client balance: %w", err)
	}
	return balance, nil
}
