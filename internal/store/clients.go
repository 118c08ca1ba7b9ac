package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bahikhata/bahikhata/internal/ledger"
)

// InsertClient inserts a new client and returns it with its assigned id.
// Names are unique; inserting a duplicate returns ErrNameTaken.
func (s *Store) InsertClient(ctx context.Context, c ledger.Client) (*ledger.Client, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client: %w", err)
	}

	taken, err := s.nameTaken(ctx, "clients", c.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNameTaken
	}

	c.UpdatedAt = time.Now().UTC()
	c.Synced = false
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO clients (name, phone, address, updated_at, remote_id, synced)
		VALUES (?, ?, ?, ?, ?, 0)
	`, c.Name, c.Phone, c.Address, timeToText(c.UpdatedAt), c.RemoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert client: %w", err)
	}

	c.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read client id: %w", err)
	}
	return &c, nil
}

// GetClient retrieves a client by id.
func (s *Store) GetClient(ctx context.Context, id int64) (*ledger.Client, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name, phone, address, updated_at, remote_id, synced
		FROM clients WHERE id = ?
	`, id)
	return scanClient(row)
}

// ListClients returns all clients ordered by name.
func (s *Store) ListClients(ctx context.Context) ([]ledger.Client, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, phone, address, updated_at, remote_id, synced
		FROM clients ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []ledger.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

// UpdateClient updates a client's mutable fields. The id is immutable once
// assigned; renaming to another client's name returns ErrNameTaken.
func (s *Store) UpdateClient(ctx context.Context, c ledger.Client) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid client: %w", err)
	}

	taken, err := s.nameTaken(ctx, "clients", c.Name, c.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrNameTaken
	}

	res, err := s.conn.ExecContext(ctx, `
		UPDATE clients
		SET name = ?, phone = ?, address = ?, remote_id = ?, updated_at = ?, synced = 0
		WHERE id = ?
	`, c.Name, c.Phone, c.Address, c.RemoteID, timeToText(time.Now()), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return requireAffected(res)
}

// DeleteClient removes a client. Deleting a client with bills or ledger
// entries fails on the foreign key constraint.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return requireAffected(res)
}

// nameTaken reports whether another row in table already uses name.
// excludeID skips the row being updated (0 for inserts).
func (s *Store) nameTaken(ctx context.Context, table, name string, excludeID int64) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE name = ? AND id != ?`, table),
		name, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check name uniqueness: %w", err)
	}
	return n > 0, nil
}

// requireAffected converts a zero-row update or delete into ErrNotFound.
func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*ledger.Client, error) {
	var (
		c         ledger.Client
		updatedAt string
		synced    int
	)
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &updatedAt, &c.RemoteID, &synced)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	c.UpdatedAt = textToTime(updatedAt)
	c.Synced = synced != 0
	return &c, nil
}
