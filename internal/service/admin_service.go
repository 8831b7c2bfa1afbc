package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/outbox"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AdminDeps groups the collaborators of the back office.
type AdminDeps struct {
	Transactor repository.Transactor
	Products   repository.ProductRepository
	Orders     repository.OrderRepository
	Inventory  repository.InventoryRepository
	Outbox     outbox.Store
	Metrics    *metrics.Metrics
}

// adminService implements AdminService.
type adminService struct {
	AdminDeps
	lowStockThreshold int
	logger            zerolog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(deps AdminDeps, lowStockThreshold int, logger zerolog.Logger) AdminService {
	return &adminService{
		AdminDeps:         deps,
		lowStockThreshold: lowStockThreshold,
		logger:            logger.With().Str("service", "admin").Logger(),
	}
}

// ListProducts returns one page of every product, active or not, and the total count.
func (s *adminService) ListProducts(ctx context.Context, limit, offset int) ([]model.Product, int, error) {
	limit, offset = clampPage(limit, offset)

	products, err := s.Products.List(ctx, repository.ProductFilter{Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	total, err := s.Products.Count(ctx, false)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}
	return products, total, nil
}

// CreateProduct inserts an empty product and ledgers its opening stock as a
// restock in the same transaction.
func (s *adminService) CreateProduct(ctx context.Context, req *model.ProductRequest) (*model.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product := productFromRequest(req)
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.Active = req.Active == nil || *req.Active

	var entry *model.InventoryLogEntry
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := s.Products.Create(ctx, tx, product); err != nil {
			return err
		}
		if req.InitialStock == 0 {
			return nil
		}

		var err error
		entry, err = s.applyChange(ctx, tx, model.InventoryChange{
			ProductID: product.ID,
			Type:      model.ChangeTypeRestock,
			NewCount:  req.InitialStock,
			Note:      "Initial stock",
		})
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("product_id", product.ID).Msg("failed to create product")
		return nil, err
	}

	if entry != nil {
		product.Stock = entry.NewCount
		s.Metrics.InventoryChanged(string(entry.ChangeType))
	}

	s.logger.Info().
		Str("product_id", product.ID).
		Int("stock", product.Stock).
		Msg("product created")
	return product, nil
}

// UpdateProduct replaces a product's catalogue fields. Stock is never touched;
// a nil Active keeps the current visibility.
func (s *adminService) UpdateProduct(ctx context.Context, id string, req *model.ProductRequest) (*model.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.Products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if existing == nil {
		return nil, model.NewProductNotFoundError(id)
	}

	product := productFromRequest(req)
	product.ID = id
	product.Active = existing.Active
	if req.Active != nil {
		product.Active = *req.Active
	}

	if err := s.Products.Update(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info().Str("product_id", id).Msg("product updated")
	return product, nil
}

// SetProductActive shows or hides a product in the storefront.
func (s *adminService) SetProductActive(ctx context.Context, id string, active bool) (*model.Product, error) {
	product, err := s.Products.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("product_id", id).Bool("active", active).Msg("product visibility changed")
	return product, nil
}

// DeleteProduct removes a product outright when nothing references it;
// otherwise it falls back to hiding the product.
func (s *adminService) DeleteProduct(ctx context.Context, id string) (*model.DeleteProductResult, error) {
	deleted, err := s.Products.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if deleted {
		s.logger.Info().Str("product_id", id).Msg("product deleted")
		return &model.DeleteProductResult{ProductID: id, Outcome: model.DeleteOutcomeDeleted}, nil
	}

	if _, err := s.Products.SetActive(ctx, id, false); err != nil {
		return nil, err
	}
	s.logger.Info().Str("product_id", id).Msg("product has history, deactivated instead of deleted")
	return &model.DeleteProductResult{ProductID: id, Outcome: model.DeleteOutcomeDeactivated}, nil
}

// ChangeInventory applies a manual restock or adjustment. Sales are only
// recorded by fulfilment.
func (s *adminService) ChangeInventory(ctx context.Context, productID string, req *model.InventoryRequest) (*model.InventoryLogEntry, error) {
	if req.ChangeType == model.ChangeTypeSale {
		return nil, model.NewDomainError(model.ErrCodeInvalidInventoryChange,
			"Sales are recorded by order fulfilment")
	}
	if req.ChangeType != "" && !req.ChangeType.Valid() {
		return nil, model.NewDomainError(model.ErrCodeInvalidInventoryChange,
			fmt.Sprintf("Unknown change type %q", req.ChangeType))
	}
	if req.NewCount < 0 {
		return nil, model.NewDomainError(model.ErrCodeInvalidInventoryChange, "Stock cannot be negative")
	}

	var entry *model.InventoryLogEntry
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		entry, err = s.applyChange(ctx, tx, model.InventoryChange{
			ProductID: productID,
			Type:      req.ChangeType,
			NewCount:  req.NewCount,
			Note:      strings.TrimSpace(req.Note),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.InventoryChanged(string(entry.ChangeType))
	s.logger.Info().
		Str("product_id", productID).
		Str("change_type", string(entry.ChangeType)).
		Int("previous_count", entry.PreviousCount).
		Int("new_count", entry.NewCount).
		Msg("inventory changed")
	return entry, nil
}

// ListOrders returns one page of orders, newest first.
func (s *adminService) ListOrders(ctx context.Context, limit, offset int) ([]model.Order, error) {
	limit, offset = clampPage(limit, offset)

	orders, err := s.Orders.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns an order with its items.
func (s *adminService) GetOrder(ctx context.Context, id uuid.UUID) (*model.OrderResponse, error) {
	order, items, err := s.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return &model.OrderResponse{Order: *order, Items: items}, nil
}

// UpdateOrderStatus moves an order to any known status.
func (s *adminService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.ErrInvalidStatus
	}

	order, err := s.Orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_id", id.String()).
		Str("status", string(status)).
		Msg("order status changed")
	return order, nil
}

// ListInventoryLogs returns recent ledger entries, optionally for one product.
func (s *adminService) ListInventoryLogs(ctx context.Context, productID string, limit int) ([]model.InventoryLogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	entries, err := s.Inventory.ListLogs(ctx, repository.LogFilter{
		ProductID: strings.TrimSpace(productID),
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory logs: %w", err)
	}
	return entries, nil
}

// Reconcile reports every product whose stock its ledger does not explain.
func (s *adminService) Reconcile(ctx context.Context) ([]model.LedgerDiscrepancy, error) {
	discrepancies, err := s.Inventory.Reconcile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile inventory: %w", err)
	}

	if len(discrepancies) > 0 {
		s.logger.Warn().Int("count", len(discrepancies)).Msg("inventory ledger discrepancies found")
	}
	return discrepancies, nil
}

// Stats summarises the catalogue and order book.
func (s *adminService) Stats(ctx context.Context) (*model.AdminStats, error) {
	products, err := s.Products.Count(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	orders, revenue, err := s.Orders.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise orders: %w", err)
	}
	lowStock, err := s.Products.CountLowStock(ctx, s.lowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to count low stock products: %w", err)
	}

	return &model.AdminStats{
		TotalProducts: products,
		TotalOrders:   orders,
		TotalRevenue:  revenue,
		LowStockCount: lowStock,
	}, nil
}

// applyChange records a stock change and its outbox event in tx.
func (s *adminService) applyChange(ctx context.Context, tx pgx.Tx, change model.InventoryChange) (*model.InventoryLogEntry, error) {
	entry, err := s.Inventory.Apply(ctx, tx, change)
	if err != nil {
		return nil, err
	}
	if err := s.Outbox.Add(ctx, tx, outbox.EventInventoryChanged, entry.ProductID, outbox.NewInventoryChanged(entry)); err != nil {
		return nil, err
	}
	return entry, nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *adminService) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Transactor.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func productFromRequest(req *model.ProductRequest) *model.Product {
	return &model.Product{
		ID:          strings.TrimSpace(req.ID),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	}
}
