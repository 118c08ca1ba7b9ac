package store

import (
	"context"
	"errors"
	"testing"
)

func TestClientCRUD(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created := seedClient(t, s, "Asha")

	got, err := s.GetClient(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetClient failed: %v", err)
	}
	if got.Name != "Asha" || got.Phone != "12345" {
		t.Errorf("unexpected client: %+v", got)
	}
	if got.Synced {
		t.Error("expected new client unsynced")
	}

	got.Address = "12 Market Road"
	if err := s.UpdateClient(ctx, *got); err != nil {
		t.Fatalf("UpdateClient failed: %v", err)
	}

	got, err = s.GetClient(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetClient failed: %v", err)
	}
	if got.Address != "12 Market Road" {
		t.Errorf("expected address updated, got %q", got.Address)
	}

	if err := s.DeleteClient(ctx, created.ID); err != nil {
		t.Fatalf("DeleteClient failed: %v", err)
	}
	if _, err := s.GetClient(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestClientNameUnique(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	asha := seedClient(t, s, "Asha")
	ravi := seedClient(t, s, "Ravi")

	if _, err := s.InsertClient(ctx, *ravi); !errors.Is(err, ErrNameTaken) {
		t.Errorf("expected ErrNameTaken inserting duplicate, got %v", err)
	}

	ravi.Name = "Asha"
	if err := s.UpdateClient(ctx, *ravi); !errors.Is(err, ErrNameTaken) {
		t.Errorf("expected ErrNameTaken renaming onto existing client, got %v", err)
	}

	// Updating a client without renaming it is fine.
	if err := s.UpdateClient(ctx, *asha); err != nil {
		t.Errorf("expected update keeping the same name allowed, got %v", err)
	}
}

func TestListClientsOrdered(t *testing.T) {
	s := setupTestStore(t)

	for _, name := range []string{"Ravi", "Asha", "Meena"} {
		seedClient(t, s, name)
	}

	clients, err := s.ListClients(context.Background())
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	want := []string{"Asha", "Meena", "Ravi"}
	if len(clients) != len(want) {
		t.Fatalf("expected %d clients, got %d", len(want), len(clients))
	}
	for i, name := range want {
		if clients[i].Name != name {
			t.Errorf("expected client %d to be %s, got %s", i, name, clients[i].Name)
		}
	}
}

func TestProductNameUnique(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	milk := seedProduct(t, s, "Milk", 25, 10)
	bread := seedProduct(t, s, "Bread", 40, 5)

	if _, err := s.InsertProduct(ctx, *milk); !errors.Is(err, ErrNameTaken) {
		t.Errorf("expected ErrNameTaken inserting duplicate, got %v", err)
	}

	bread.Name = "Milk"
	if err := s.UpdateProduct(ctx, *bread); !errors.Is(err, ErrNameTaken) {
		t.Errorf("expected ErrNameTaken renaming onto existing product, got %v", err)
	}
}

// UpdateProduct leaves the stock cache alone: stock changes flow through
// the stock operations only.
func TestUpdateProductPreservesStock(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	milk := seedProduct(t, s, "Milk", 25, 10)

	milk.Price = 30
	milk.Stock = 9999 // ignored
	if err := s.UpdateProduct(ctx, *milk); err != nil {
		t.Fatalf("UpdateProduct failed: %v", err)
	}

	got, err := s.GetProduct(ctx, milk.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.Price != 30 {
		t.Errorf("expected price updated to 30, got %v", got.Price)
	}
	if got.Stock != 10 {
		t.Errorf("expected stock cache untouched at 10, got %v", got.Stock)
	}
}
