package ledger

import (
	"testing"
	"time"
)

func TestKindValid(t *testing.T) {
	for _, k := range Kinds {
		if !k.Valid() {
			t.Errorf("expected kind %q to be valid", k)
		}
	}
	for _, k := range []Kind{"", "bogus", "client"} {
		if k.Valid() {
			t.Errorf("expected kind %q to be invalid", k)
		}
	}
}

func TestValidate(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rec     interface{ Validate() error }
		wantErr bool
	}{
		{"valid client", &Client{Name: "Asha"}, false},
		{"client without name", &Client{Phone: "12345"}, true},

		{"valid product", &Product{Name: "Milk", Price: 25}, false},
		{"product without name", &Product{Price: 25}, true},
		{"product negative price", &Product{Name: "Milk", Price: -1}, true},

		{"valid bill", &Bill{ClientID: 1, Date: date}, false},
		{"bill without client", &Bill{Date: date}, true},
		{"bill without date", &Bill{ClientID: 1}, true},

		{"valid bill item", &BillItem{ProductID: 1, Quantity: 2, Price: 25}, false},
		{"bill item without product", &BillItem{Quantity: 2}, true},
		{"bill item zero quantity", &BillItem{ProductID: 1, Quantity: 0}, true},
		{"bill item negative price", &BillItem{ProductID: 1, Quantity: 2, Price: -1}, true},

		{"valid bill entry", &LedgerEntry{ClientID: 1, Type: EntryBill, Amount: 10}, false},
		{"valid payment entry", &LedgerEntry{ClientID: 1, Type: EntryPayment, Amount: 10}, false},
		{"entry unknown type", &LedgerEntry{ClientID: 1, Type: "refund", Amount: 10}, true},
		{"entry without client", &LedgerEntry{Type: EntryBill, Amount: 10}, true},
		{"entry negative amount", &LedgerEntry{ClientID: 1, Type: EntryBill, Amount: -10}, true},

		{"valid demand", &Demand{BatchID: 1, ClientID: 1, ProductID: 1, Quantity: 5}, false},
		{"demand without batch", &Demand{ClientID: 1, ProductID: 1, Quantity: 5}, true},
		{"demand zero quantity", &Demand{BatchID: 1, ClientID: 1, ProductID: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected valid record, got %v", err)
			}
		})
	}
}
