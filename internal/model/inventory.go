package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies an inventory ledger entry.
type ChangeType string

const (
	ChangeTypeSale       ChangeType = "sale"
	ChangeTypeRestock    ChangeType = "restock"
	ChangeTypeAdjustment ChangeType = "adjustment"
)

// Valid reports whether c is a known change type.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeTypeSale, ChangeTypeRestock, ChangeTypeAdjustment:
		return true
	}
	return false
}

// InventoryChange describes one stock mutation. Sales carry a Quantity to
// remove; restocks and adjustments carry the absolute NewCount.
type InventoryChange struct {
	ProductID string
	Type      ChangeType
	NewCount  int
	Quantity  int
	Note      string
	OrderID   *uuid.UUID
}

// WithDerivedType fills an omitted change type from the direction of the
// change: raising stock is a restock, anything else an adjustment.
func (c InventoryChange) WithDerivedType(previous int) InventoryChange {
	if c.Type != "" {
		return c
	}
	if c.NewCount > previous {
		c.Type = ChangeTypeRestock
	} else {
		c.Type = ChangeTypeAdjustment
	}
	return c
}

// Resolve computes the stock level that results from applying c to previous.
// It rejects any change that would leave stock negative and any restock that
// does not raise stock.
func (c InventoryChange) Resolve(previous int) (int, error) {
	switch c.Type {
	case ChangeTypeSale:
		if c.Quantity <= 0 {
			return 0, ErrInvalidQuantity
		}
		if c.Quantity > previous {
			return 0, NewStockConflictError(c.ProductID, c.Quantity, previous)
		}
		return previous - c.Quantity, nil
	case ChangeTypeRestock:
		if c.NewCount <= previous {
			return 0, NewDomainError(ErrCodeInvalidInventoryChange,
				fmt.Sprintf("Restock must raise stock above %d", previous))
		}
		return c.NewCount, nil
	case ChangeTypeAdjustment:
		if c.NewCount < 0 {
			return 0, NewDomainError(ErrCodeInvalidInventoryChange, "Stock cannot be negative")
		}
		return c.NewCount, nil
	default:
		return 0, NewDomainError(ErrCodeInvalidInventoryChange,
			fmt.Sprintf("Unknown change type %q", c.Type))
	}
}

// InventoryLogEntry is one append-only ledger row.
type InventoryLogEntry struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	ProductID     string     `json:"productId" db:"product_id"`
	ProductName   string     `json:"productName,omitempty"`
	PreviousCount int        `json:"previousCount" db:"previous_count"`
	NewCount      int        `json:"newCount" db:"new_count"`
	ChangeType    ChangeType `json:"changeType" db:"change_type"`
	Note          string     `json:"note,omitempty" db:"note"`
	OrderID       *uuid.UUID `json:"orderId,omitempty" db:"order_id"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
}

// Delta is the signed stock change recorded by the entry.
func (e InventoryLogEntry) Delta() int {
	return e.NewCount - e.PreviousCount
}

// InventoryRequest is the admin payload for a manual stock correction.
// An empty ChangeType is derived from the direction of the change.
type InventoryRequest struct {
	NewCount   int        `json:"newCount"`
	ChangeType ChangeType `json:"changeType,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// LedgerDiscrepancy reports a product whose stock no longer matches its ledger.
type LedgerDiscrepancy struct {
	ProductID    string `json:"productId"`
	ProductName  string `json:"productName"`
	Stock        int    `json:"stock"`
	LedgerSum    int    `json:"ledgerSum"`
	ChainBreaks  int    `json:"chainBreaks"`
	EntriesCount int    `json:"entriesCount"`
}

// ReconcileLedger compares a product's current stock with its ledger. Entries
// must be in the order they were appended; the chain starts at zero because
// a product is created empty and its initial stock is ledgered as a restock.
// ok=true means the ledger fully explains the stock level.
func ReconcileLedger(productID string, stock int, entries []InventoryLogEntry) (LedgerDiscrepancy, bool) {
	d := LedgerDiscrepancy{
		ProductID:    productID,
		Stock:        stock,
		EntriesCount: len(entries),
	}

	last := 0
	for _, e := range entries {
		d.LedgerSum += e.Delta()
		if e.PreviousCount != last {
			d.ChainBreaks++
		}
		last = e.NewCount
	}

	if d.LedgerSum == stock && d.ChainBreaks == 0 {
		return LedgerDiscrepancy{}, true
	}
	return d, false
}
