package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/intent"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// CheckoutConfig holds checkout settings.
type CheckoutConfig struct {
	Currency       string
	GatewayTimeout time.Duration
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	productRepo repository.ProductRepository
	gateway     gateway.Gateway
	signer      intent.Signer
	metrics     *metrics.Metrics
	config      CheckoutConfig
	logger      zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	productRepo repository.ProductRepository,
	gw gateway.Gateway,
	signer intent.Signer,
	m *metrics.Metrics,
	cfg CheckoutConfig,
	logger zerolog.Logger,
) CheckoutService {
	return &checkoutService{
		productRepo: productRepo,
		gateway:     gw,
		signer:      signer,
		metrics:     m,
		config:      cfg,
		logger:      logger.With().Str("service", "checkout").Logger(),
	}
}

// BeginCheckout validates the cart, prices it from the catalogue and opens a
// gateway session carrying the signed snapshot.
func (s *checkoutService) BeginCheckout(ctx context.Context, lines []model.CartLine) (*model.CheckoutResponse, error) {
	resp, err := s.beginCheckout(ctx, lines)
	if err != nil {
		s.metrics.CheckoutResult(model.CodeOf(err))
		return nil, err
	}
	s.metrics.CheckoutResult("opened")
	return resp, nil
}

func (s *checkoutService) beginCheckout(ctx context.Context, lines []model.CartLine) (*model.CheckoutResponse, error) {
	if err := model.ValidateCart(lines); err != nil {
		s.logger.Warn().Err(err).Int("line_count", len(lines)).Msg("cart rejected")
		return nil, err
	}

	quantities := model.CartQuantities(lines)
	order := make([]string, 0, len(quantities))
	seen := make(map[string]bool, len(quantities))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			order = append(order, l.ProductID)
		}
	}

	products, err := s.productRepo.GetByIDs(ctx, order)
	if err != nil {
		s.logger.Error().Err(err).Strs("product_ids", order).Msg("failed to load cart products")
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	snapshotLines := make([]model.SnapshotLine, 0, len(order))
	for _, id := range order {
		p, ok := byID[id]
		if !ok || !p.Active {
			s.logger.Warn().Str("product_id", id).Msg("cart references unknown product")
			return nil, model.NewProductNotFoundError(id)
		}
		if quantities[id] > p.Stock {
			s.logger.Info().
				Str("product_id", id).
				Int("requested", quantities[id]).
				Int("available", p.Stock).
				Msg("insufficient stock at checkout")
			return nil, model.NewInsufficientStockError(p.ID, p.Name, p.Stock)
		}
		snapshotLines = append(snapshotLines, model.SnapshotLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    quantities[id],
			UnitPrice:   p.Price,
		})
	}

	snapshot := model.NewSnapshot(snapshotLines, s.config.Currency)
	metadata, err := s.signer.Sign(snapshot)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to sign checkout snapshot")
		return nil, fmt.Errorf("failed to sign checkout snapshot: %w", err)
	}

	req := gateway.OpenRequest{
		Currency: s.config.Currency,
		Metadata: metadata,
		Lines:    make([]gateway.LineItem, 0, len(snapshot.Lines)),
	}
	for _, l := range snapshot.Lines {
		req.Lines = append(req.Lines, gateway.LineItem{
			Name:      l.ProductName,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	gctx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	started := time.Now()
	token, err := s.gateway.Open(gctx, req)
	s.metrics.ObserveGateway("open", time.Since(started), err)
	if err != nil {
		s.logger.Error().Err(err).
			Str("total", snapshot.Total.StringFixed(2)).
			Msg("failed to open payment session")
		return nil, fmt.Errorf("%w: %w", model.ErrGatewayUnavailable, err)
	}

	s.logger.Info().
		Str("session_token", token).
		Int("line_count", len(snapshot.Lines)).
		Str("total", snapshot.Total.StringFixed(2)).
		Msg("checkout session opened")

	return &model.CheckoutResponse{
		SessionToken: token,
		Subtotal:     snapshot.Subtotal,
		Total:        snapshot.Total,
	}, nil
}
