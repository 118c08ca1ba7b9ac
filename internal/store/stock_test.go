package store

import (
	"context"
	"testing"
)

func TestStockNeverNegative(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	milk := seedProduct(t, s, "Milk", 25, 10)

	steps := []struct {
		delta float64
		want  float64
	}{
		{-4, 6},
		{-10, 0}, // oversell absorbed
		{5, 5},
		{-5, 0},
		{-1, 0},
		{3, 3},
	}
	for _, step := range steps {
		if err := s.AdjustStock(ctx, milk.ID, step.delta); err != nil {
			t.Fatalf("AdjustStock(%v) failed: %v", step.delta, err)
		}
		if got := mustStock(t, s, milk.ID); got != step.want {
			t.Errorf("after delta %v: expected stock %v, got %v", step.delta, step.want, got)
		}
	}
}

func TestGetStockMissingProduct(t *testing.T) {
	s := setupTestStore(t)

	qty, err := s.GetStock(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}
	if qty != 0 {
		t.Errorf("expected 0 for product without a stock row, got %v", qty)
	}
}

func TestSetStockClampsNegative(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	milk := seedProduct(t, s, "Milk", 25, 10)

	if err := s.SetStock(ctx, milk.ID, -5); err != nil {
		t.Fatalf("SetStock failed: %v", err)
	}
	if got := mustStock(t, s, milk.ID); got != 0 {
		t.Errorf("expected negative set clamped to 0, got %v", got)
	}
}

// TestProductCacheMatchesStockTable verifies the denormalized stock column
// on products follows the stock table through every mutation path.
func TestProductCacheMatchesStockTable(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	milk := seedProduct(t, s, "Milk", 25, 10)

	check := func(label string) {
		t.Helper()
		table := mustStock(t, s, milk.ID)
		p, err := s.GetProduct(ctx, milk.ID)
		if err != nil {
			t.Fatalf("GetProduct failed: %v", err)
		}
		if p.Stock != table {
			t.Errorf("%s: product cache %v does not match stock table %v", label, p.Stock, table)
		}
	}

	check("after insert")

	if err := s.AdjustStock(ctx, milk.ID, -3); err != nil {
		t.Fatalf("AdjustStock failed: %v", err)
	}
	check("after adjust")

	if err := s.SetStock(ctx, milk.ID, 42); err != nil {
		t.Fatalf("SetStock failed: %v", err)
	}
	check("after set")
}
