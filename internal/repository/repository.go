package repository

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Transactor starts transactions that span several repositories.
type Transactor interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ProductRepository defines the interface for product data access operations.
// None of its methods write stock; see InventoryRepository.Apply.
type ProductRepository interface {
	// List retrieves products ordered by name.
	List(ctx context.Context, filter ProductFilter) ([]model.Product, error)

	// Count returns the number of products matching activeOnly.
	Count(ctx context.Context, activeOnly bool) (int, error)

	// GetByID retrieves a single product by its ID. Returns nil when missing.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)

	// Create inserts a product with zero stock within the provided transaction.
	Create(ctx context.Context, tx pgx.Tx, product *model.Product) error

	// Update replaces every field of a product except its stock.
	Update(ctx context.Context, product *model.Product) error

	// SetActive toggles storefront visibility.
	SetActive(ctx context.Context, id string, active bool) (*model.Product, error)

	// CountLowStock counts active products with stock at or below threshold.
	CountLowStock(ctx context.Context, threshold int) (int, error)

	// Delete removes a product that no order item or ledger entry references.
	// It reports false when nothing was removed.
	Delete(ctx context.Context, id string) (bool, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// CreateOrder inserts a new order within the provided transaction. It
	// returns false, without error, when the payment session already has an order.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) (bool, error)

	// CreateOrderItems inserts multiple order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// GetByID retrieves an order by its ID along with its items.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, []model.OrderItem, error)

	// GetBySessionID retrieves the order created for a payment session.
	GetBySessionID(ctx context.Context, sessionID string) (*model.Order, error)

	// List retrieves orders, newest first.
	List(ctx context.Context, limit, offset int) ([]model.Order, error)

	// UpdateStatus sets the status of an order.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error)

	// Summary returns the number of orders and the revenue of completed ones.
	Summary(ctx context.Context) (int, decimal.Decimal, error)
}

// LogFilter narrows an inventory ledger listing.
type LogFilter struct {
	ProductID string
	Limit     int
}

// InventoryRepository owns every stock write and the ledger behind it.
type InventoryRepository interface {
	// Apply locks the product row, writes the resolved stock level and appends
	// exactly one ledger entry, all within the provided transaction. An empty
	// change type is derived from the locked stock level.
	Apply(ctx context.Context, tx pgx.Tx, change model.InventoryChange) (*model.InventoryLogEntry, error)

	// ListLogs retrieves ledger entries, newest first.
	ListLogs(ctx context.Context, filter LogFilter) ([]model.InventoryLogEntry, error)

	// Reconcile compares every product's stock with its ledger from a single
	// consistent snapshot and returns the products that disagree.
	Reconcile(ctx context.Context) ([]model.LedgerDiscrepancy, error)
}
