package model

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CartLine is one entry of the client-held cart. Only the product reference
// and quantity are trusted; prices always come from the catalogue.
type CartLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CheckoutRequest is the storefront payload for starting a checkout.
type CheckoutRequest struct {
	Items []CartLine `json:"items"`
}

// CheckoutResponse carries the payment session token back to the storefront.
type CheckoutResponse struct {
	SessionToken string          `json:"sessionToken"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Total        decimal.Decimal `json:"total"`
}

// MaxQuantity bounds the units of one product in a cart. Stock is stored
// as a 32-bit integer, so nothing larger can ever be in stock.
const MaxQuantity = math.MaxInt32

// ValidateCart checks the shape of a cart before any lookup is made.
// Repeated lines for a product must stay within MaxQuantity together.
func ValidateCart(lines []CartLine) error {
	if len(lines) == 0 {
		return ErrEmptyCart
	}
	totals := make(map[string]int, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return NewDomainError(ErrCodeMissingField, "Product ID is required")
		}
		if line.Quantity <= 0 || line.Quantity > MaxQuantity {
			return ErrInvalidQuantity
		}
		totals[line.ProductID] += line.Quantity
		if totals[line.ProductID] > MaxQuantity {
			return ErrInvalidQuantity
		}
	}
	return nil
}

// CartQuantities sums quantities per product so repeated lines are checked
// against stock together.
func CartQuantities(lines []CartLine) map[string]int {
	totals := make(map[string]int, len(lines))
	for _, line := range lines {
		totals[line.ProductID] += line.Quantity
	}
	return totals
}

// SnapshotLine is a frozen line of a checkout intent.
type SnapshotLine struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// LineTotal is unit price times quantity.
func (l SnapshotLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is the immutable record of what the customer agreed to pay.
type Snapshot struct {
	Lines    []SnapshotLine  `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// NewSnapshot freezes lines and computes totals from their unit prices.
// The storefront does not charge tax or shipping, so total equals subtotal.
func NewSnapshot(lines []SnapshotLine, currency string) Snapshot {
	frozen := make([]SnapshotLine, len(lines))
	copy(frozen, lines)

	subtotal := decimal.Zero
	for _, l := range frozen {
		subtotal = subtotal.Add(l.LineTotal())
	}

	return Snapshot{
		Lines:    frozen,
		Subtotal: subtotal,
		Total:    subtotal,
		Currency: currency,
	}
}

// Validate rejects snapshots that could not have been issued by checkout.
func (s Snapshot) Validate() error {
	if len(s.Lines) == 0 {
		return ErrInvalidSession
	}
	for _, l := range s.Lines {
		if l.ProductID == "" || l.Quantity <= 0 || l.Quantity > MaxQuantity || l.UnitPrice.IsNegative() {
			return ErrInvalidSession
		}
	}
	return nil
}

// ProductIDs lists the distinct products in the snapshot, sorted.
func (s Snapshot) ProductIDs() []string {
	seen := make(map[string]struct{}, len(s.Lines))
	ids := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	sort.Strings(ids)
	return ids
}

// SaleQuantities merges the snapshot into one quantity per product, ordered
// by product ID. Applying sales in this order keeps row locks acquired in a
// consistent sequence across concurrent fulfilments.
func (s Snapshot) SaleQuantities() []CartLine {
	totals := make(map[string]int, len(s.Lines))
	for _, l := range s.Lines {
		totals[l.ProductID] += l.Quantity
	}

	out := make([]CartLine, 0, len(totals))
	for _, id := range s.ProductIDs() {
		out = append(out, CartLine{ProductID: id, Quantity: totals[id]})
	}
	return out
}
