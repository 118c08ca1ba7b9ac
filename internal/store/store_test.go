package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bahikhata/bahikhata/internal/ledger"
)

// setupTestStore creates a migrated temporary database for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return s
}

// seedClient inserts a client for tests.
func seedClient(t *testing.T, s *Store, name string) *ledger.Client {
	t.Helper()

	c, err := s.InsertClient(context.Background(), ledger.Client{Name: name, Phone: "12345"})
	if err != nil {
		t.Fatalf("failed to seed client %s: %v", name, err)
	}
	return c
}

// seedProduct inserts a product with an initial stock quantity.
func seedProduct(t *testing.T, s *Store, name string, price, stock float64) *ledger.Product {
	t.Helper()

	p, err := s.InsertProduct(context.Background(), ledger.Product{
		Name:  name,
		Price: price,
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("failed to seed product %s: %v", name, err)
	}
	return p
}

// mustStock reads a product's stock quantity.
func mustStock(t *testing.T, s *Store, productID int64) float64 {
	t.Helper()

	qty, err := s.GetStock(context.Background(), productID)
	if err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return qty
}

func TestDeviceIDStable(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.DeviceID(ctx)
	if err != nil {
		t.Fatalf("DeviceID failed: %v", err)
	}
	if first == "" {
		t.Fatal("expected non-empty device id")
	}

	second, err := s.DeviceID(ctx)
	if err != nil {
		t.Fatalf("DeviceID failed: %v", err)
	}
	if first != second {
		t.Errorf("device id changed between calls: %s vs %s", first, second)
	}
}

func TestIsEmpty(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	empty, err := s.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty failed: %v", err)
	}
	if !empty {
		t.Error("expected fresh store to be empty")
	}

	seedClient(t, s, "Asha")

	empty, err = s.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty failed: %v", err)
	}
	if empty {
		t.Error("expected store with a client to be non-empty")
	}
}
