package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bahikhata/bahikhata/internal/ledger"
)

// InsertProduct inserts a new product and returns it with its assigned id.
// Names are unique; inserting a duplicate returns ErrNameTaken. An initial
// stock row is created so the cached Stock field and the stock table agree
// from the start.
func (s *Store) InsertProduct(ctx context.Context, p ledger.Product) (*ledger.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid product: %w", err)
	}

	taken, err := s.nameTaken(ctx, "products", p.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrNameTaken
	}

	if p.Stock < 0 {
		p.Stock = 0
	}
	p.UpdatedAt = time.Now().UTC()
	p.Synced = false

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO products (name, weight, price, stock, updated_at, remote_id, synced)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, p.Name, p.Weight, p.Price, p.Stock, timeToText(p.UpdatedAt), p.RemoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read product id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock (product_id, quantity) VALUES (?, ?)
	`, p.ID, p.Stock); err != nil {
		return nil, fmt.Errorf("failed to insert stock row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &p, nil
}

// GetProduct retrieves a product by id.
func (s *Store) GetProduct(ctx context.Context, id int64) (*ledger.Product, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name, weight, price, stock, updated_at, remote_id, synced
		FROM products WHERE id = ?
	`, id)
	return scanProduct(row)
}

// ListProducts returns all products ordered by name.
func (s *Store) ListProducts(ctx context.Context) ([]ledger.Product, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, weight, price, stock, updated_at, remote_id, synced
		FROM products ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []ledger.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpdateProduct updates a product's name, weight and price. The stock
// cache is owned by the stock operations and is deliberately not written
// here.
func (s *Store) UpdateProduct(ctx context.Context, p ledger.Product) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}

	taken, err := s.nameTaken(ctx, "products", p.Name, p.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrNameTaken
	}

	res, err := s.conn.ExecContext(ctx, `
		UPDATE products
		SET name = ?, weight = ?, price = ?, remote_id = ?, updated_at = ?, synced = 0
		WHERE id = ?
	`, p.Name, p.Weight, p.Price, p.RemoteID, timeToText(time.Now()), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return requireAffected(res)
}

// DeleteProduct removes a product. Its stock row goes with it (cascading
// delete); products referenced by bill items fail on the foreign key
// constraint.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireAffected(res)
}

func scanProduct(row rowScanner) (*ledger.Product, error) {
	var (
		p         ledger.Product
		updatedAt string
		synced    int
	)
	err := row.Scan(&p.ID, &p.Name, &p.Weight, &p.Price, &p.Stock, &updatedAt, &p.RemoteID, &synced)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	p.UpdatedAt = textToTime(updatedAt)
	p.Synced = synced != 0
	return &p, nil
}
