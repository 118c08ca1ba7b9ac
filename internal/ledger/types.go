// Package ledger provides the typed records persisted by the local store.
//
// Every record carries a Synced flag that is cleared on local mutation and
// set only after the remote store has confirmed persistence. Records that
// are uploaded individually also carry a RemoteID assigned by the remote
// store on first successful upload, and an UpdatedAt timestamp used for
// change detection during reconciliation.
package ledger

import (
	"fmt"
	"time"
)

// Kind identifies an entity kind for sync bookkeeping. The value doubles
// as the table name in the local store.
type Kind string

const (
	KindClient      Kind = "clients"
	KindProduct     Kind = "products"
	KindBill        Kind = "bills"
	KindBillItem    Kind = "bill_items"
	KindLedgerEntry Kind = "ledger_entries"
	KindDemandBatch Kind = "demand_batches"
	KindDemand      Kind = "demands"
)

// Kinds lists every entity kind that carries a synced flag, in upload order
// (parents before children so the remote store can resolve references).
var Kinds = []Kind{
	KindClient,
	KindProduct,
	KindBill,
	KindBillItem,
	KindLedgerEntry,
	KindDemandBatch,
	KindDemand,
}

// Valid reports whether k names a known entity kind.
func (k Kind) Valid() bool {
	switch k {
	case KindClient, KindProduct, KindBill, KindBillItem,
		KindLedgerEntry, KindDemandBatch, KindDemand:
		return true
	}
	return false
}

// Ledger entry types. Exactly one bill-type entry exists per live bill;
// payment-type entries record cash received against a client's balance.
const (
	EntryBill    = "bill"
	EntryPayment = "payment"
)

// Client is a customer with a running balance.
type Client struct {
	ID        int64
	Name      string
	Phone     string
	Address   string
	UpdatedAt time.Time
	RemoteID  string
	Synced    bool
}

// Validate checks the Client has valid field values.
func (c *Client) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("client name is required")
	}
	return nil
}

// Product is a sellable item. Stock is a denormalized cache of the stock
// table's quantity for this product and must match it after every
// stock-affecting operation.
type Product struct {
	ID        int64
	Name      string
	Weight    float64
	Price     float64
	Stock     float64
	UpdatedAt time.Time
	RemoteID  string
	Synced    bool
}

// Validate checks the Product has valid field values.
func (p *Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("product name is required")
	}
	if p.Price < 0 {
		return fmt.Errorf("product price must not be negative (got %v)", p.Price)
	}
	return nil
}

// Bill is a sale to a client. TotalAmount always equals the sum of
// quantity*price over the bill's current items once a mutating operation
// completes. CarryForward is the unpaid balance rolled in from the
// client's previous bill.
type Bill struct {
	ID           int64
	ClientID     int64
	TotalAmount  float64
	PaidAmount   float64
	CarryForward float64
	Date         time.Time
	Synced       bool
}

// Validate checks the Bill has valid field values.
func (b *Bill) Validate() error {
	if b.ClientID == 0 {
		return fmt.Errorf("bill client id is required")
	}
	if b.Date.IsZero() {
		return fmt.Errorf("bill date is required")
	}
	return nil
}

// BillItem is a single line on a bill. Price is a snapshot taken at sale
// time and does not follow later product price changes.
type BillItem struct {
	ID        int64
	BillID    int64
	ProductID int64
	Quantity  float64
	Price     float64
	UpdatedAt time.Time
	Synced    bool
}

// Validate checks the BillItem has valid field values.
func (i *BillItem) Validate() error {
	if i.ProductID == 0 {
		return fmt.Errorf("bill item product id is required")
	}
	if i.Quantity <= 0 {
		return fmt.Errorf("bill item quantity must be positive (got %v)", i.Quantity)
	}
	if i.Price < 0 {
		return fmt.Errorf("bill item price must not be negative (got %v)", i.Price)
	}
	return nil
}

// LedgerEntry is a financial record against a client's running balance:
// either the charge for a bill or a payment received.
type LedgerEntry struct {
	ID       int64
	ClientID int64
	BillID   int64 // 0 for entries not tied to a bill
	Type     string
	Amount   float64
	Date     time.Time
	Note     string
	Synced   bool
}

// Validate checks the LedgerEntry has valid field values.
func (e *LedgerEntry) Validate() error {
	if e.ClientID == 0 {
		return fmt.Errorf("ledger entry client id is required")
	}
	if e.Type != EntryBill && e.Type != EntryPayment {
		return fmt.Errorf("ledger entry type must be %q or %q (got %q)", EntryBill, EntryPayment, e.Type)
	}
	if e.Amount < 0 {
		return fmt.Errorf("ledger entry amount must not be negative (got %v)", e.Amount)
	}
	return nil
}

// DemandBatch groups demand rows for one delivery date. Closing a batch is
// a one-way transition that commits its aggregated quantities into stock.
type DemandBatch struct {
	ID         int64
	DemandDate time.Time
	Closed     bool
	Synced     bool
}

// Demand is a single demand-planning request inside a batch. Rows become
// immutable once their batch is closed.
type Demand struct {
	ID        int64
	BatchID   int64
	ClientID  int64
	ProductID int64
	Quantity  float64
	Date      time.Time
	Synced    bool
}

// Validate checks the Demand has valid field values.
func (d *Demand) Validate() error {
	if d.BatchID == 0 {
		return fmt.Errorf("demand batch id is required")
	}
	if d.ClientID == 0 {
		return fmt.Errorf("demand client id is required")
	}
	if d.ProductID == 0 {
		return fmt.Errorf("demand product id is required")
	}
	if d.Quantity <= 0 {
		return fmt.Errorf("demand quantity must be positive (got %v)", d.Quantity)
	}
	return nil
}
