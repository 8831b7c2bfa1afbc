package outbox

import (
	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCompleted is published once per fulfilled payment session.
type OrderCompleted struct {
	OrderID       uuid.UUID         `json:"orderId"`
	SessionID     string            `json:"sessionId"`
	PaymentRef    string            `json:"paymentRef"`
	CustomerEmail string            `json:"customerEmail"`
	Total         decimal.Decimal   `json:"total"`
	Items         []model.OrderItem `json:"items"`
}

// InventoryChanged mirrors one ledger entry.
type InventoryChanged struct {
	ProductID     string           `json:"productId"`
	PreviousCount int              `json:"previousCount"`
	NewCount      int              `json:"newCount"`
	ChangeType    model.ChangeType `json:"changeType"`
	OrderID       *uuid.UUID       `json:"orderId,omitempty"`
	EntryID       uuid.UUID        `json:"entryId"`
}

// NewInventoryChanged builds the event for a ledger entry.
func NewInventoryChanged(e *model.InventoryLogEntry) InventoryChanged {
	return InventoryChanged{
		ProductID:     e.ProductID,
		PreviousCount: e.PreviousCount,
		NewCount:      e.NewCount,
		ChangeType:    e.ChangeType,
		OrderID:       e.OrderID,
		EntryID:       e.ID,
	}
}
