package service

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
)

// Pagination bounds shared by list operations.
const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// ProductService serves the public catalogue. Inactive products are invisible.
type ProductService interface {
	// List retrieves active products with pagination.
	List(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single active product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// CheckoutService opens payment sessions for carts.
type CheckoutService interface {
	// BeginCheckout validates the cart against live stock, freezes prices
	// into a signed snapshot and opens a gateway session for it.
	BeginCheckout(ctx context.Context, lines []model.CartLine) (*model.CheckoutResponse, error)
}

// FulfillmentService turns paid sessions into orders.
type FulfillmentService interface {
	// CompleteOrder creates the order for a paid session exactly once.
	// Repeated calls for the same session return the same order id.
	CompleteOrder(ctx context.Context, sessionToken string, shipping model.ShippingInfo) (*model.CompleteOrderResult, error)
}

// AdminService backs the back office.
type AdminService interface {
	ListProducts(ctx context.Context, limit, offset int) ([]model.Product, int, error)
	CreateProduct(ctx context.Context, req *model.ProductRequest) (*model.Product, error)
	UpdateProduct(ctx context.Context, id string, req *model.ProductRequest) (*model.Product, error)
	SetProductActive(ctx context.Context, id string, active bool) (*model.Product, error)

	// DeleteProduct removes a product with no sales or ledger history and
	// deactivates any other.
	DeleteProduct(ctx context.Context, id string) (*model.DeleteProductResult, error)

	// ChangeInventory records a manual restock or adjustment through the
	// same primitive fulfilment uses for sales.
	ChangeInventory(ctx context.Context, productID string, req *model.InventoryRequest) (*model.InventoryLogEntry, error)

	ListOrders(ctx context.Context, limit, offset int) ([]model.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error)

	ListInventoryLogs(ctx context.Context, productID string, limit int) ([]model.InventoryLogEntry, error)
	Reconcile(ctx context.Context) ([]model.LedgerDiscrepancy, error)
	Stats(ctx context.Context) (*model.AdminStats, error)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
