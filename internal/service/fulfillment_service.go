package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/intent"
	"storefront/internal/lock"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/outbox"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// FulfillmentConfig holds fulfilment settings.
type FulfillmentConfig struct {
	GatewayTimeout time.Duration
	LockTTL        time.Duration
}

// FulfillmentDeps groups the collaborators of the fulfilment engine.
type FulfillmentDeps struct {
	Transactor repository.Transactor
	Orders     repository.OrderRepository
	Inventory  repository.InventoryRepository
	Outbox     outbox.Store
	Gateway    gateway.Gateway
	Signer     intent.Signer
	Locker     lock.Locker
	Metrics    *metrics.Metrics
}

// fulfillmentService implements FulfillmentService.
type fulfillmentService struct {
	FulfillmentDeps
	config FulfillmentConfig
	logger zerolog.Logger
}

// NewFulfillmentService creates a new fulfilment service.
func NewFulfillmentService(deps FulfillmentDeps, cfg FulfillmentConfig, logger zerolog.Logger) FulfillmentService {
	return &fulfillmentService{
		FulfillmentDeps: deps,
		config:          cfg,
		logger:          logger.With().Str("service", "fulfillment").Logger(),
	}
}

// CompleteOrder resolves the signed snapshot of a paid session and, in one
// transaction, creates the order, its items, one sale per product and the
// matching outbox events.
func (s *fulfillmentService) CompleteOrder(ctx context.Context, sessionToken string, shipping model.ShippingInfo) (*model.CompleteOrderResult, error) {
	result, err := s.completeOrder(ctx, strings.TrimSpace(sessionToken), shipping)
	switch {
	case err != nil:
		s.Metrics.FulfilmentResult(model.CodeOf(err))
	case result.Replayed:
		s.Metrics.FulfilmentResult("replayed")
	default:
		s.Metrics.FulfilmentResult("created")
	}
	return result, err
}

func (s *fulfillmentService) completeOrder(ctx context.Context, token string, shipping model.ShippingInfo) (*model.CompleteOrderResult, error) {
	if token == "" {
		return nil, model.ErrInvalidSession
	}

	shipping.Normalize()
	if err := shipping.Validate(); err != nil {
		return nil, err
	}

	if result, err := s.lookupReplay(ctx, token); err != nil || result != nil {
		return result, err
	}

	release, err := s.Locker.Acquire(ctx, "complete:"+token, s.config.LockTTL)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		s.logger.Info().Str("session_token", token).Msg("completion already in progress")
		return nil, model.ErrCompletionInProgress
	case err != nil:
		// The unique session constraint still prevents double fulfilment.
		s.logger.Warn().Err(err).Str("session_token", token).Msg("completion lock unavailable, continuing without it")
	default:
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn().Err(err).Str("session_token", token).Msg("failed to release completion lock")
			}
		}()
	}

	sess, err := s.fetchSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if !sess.Paid() {
		s.logger.Info().
			Str("session_token", token).
			Str("status", string(sess.Status)).
			Msg("completion requested for unpaid session")
		return nil, model.ErrPaymentIncomplete
	}

	snapshot, err := s.Signer.Verify(sess.Metadata)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_token", token).Msg("session snapshot failed verification")
		return nil, err
	}

	return s.persist(ctx, token, sess.PaymentRef, shipping, snapshot)
}

// lookupReplay returns the existing order for a session, if any.
func (s *fulfillmentService) lookupReplay(ctx context.Context, token string) (*model.CompleteOrderResult, error) {
	existing, err := s.Orders.GetBySessionID(ctx, token)
	if err != nil {
		s.logger.Error().Err(err).Str("session_token", token).Msg("failed to check for existing order")
		return nil, fmt.Errorf("%w: %w", model.ErrPersistenceFailure, err)
	}
	if existing == nil {
		return nil, nil
	}

	s.logger.Info().
		Str("session_token", token).
		Str("order_id", existing.ID.String()).
		Msg("session already fulfilled, replaying result")
	return &model.CompleteOrderResult{OrderID: existing.ID, Replayed: true}, nil
}

func (s *fulfillmentService) fetchSession(ctx context.Context, token string) (*gateway.Session, error) {
	gctx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	started := time.Now()
	sess, err := s.Gateway.Get(gctx, token)
	s.Metrics.ObserveGateway("get", time.Since(started), err)

	if errors.Is(err, gateway.ErrSessionNotFound) {
		s.logger.Warn().Str("session_token", token).Msg("payment session not found")
		return nil, model.ErrInvalidSession
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session_token", token).Msg("failed to fetch payment session")
		return nil, fmt.Errorf("%w: %w", model.ErrGatewayUnavailable, err)
	}
	return sess, nil
}

func (s *fulfillmentService) persist(
	ctx context.Context,
	token, paymentRef string,
	shipping model.ShippingInfo,
	snapshot model.Snapshot,
) (*model.CompleteOrderResult, error) {
	log := s.logger.With().
		Str("session_token", token).
		Str("payment_ref", paymentRef).
		Strs("product_ids", snapshot.ProductIDs()).
		Logger()

	tx, err := s.Transactor.BeginTx(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin fulfilment transaction")
		return nil, fmt.Errorf("%w: %w", model.ErrPersistenceFailure, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	order := &model.Order{
		ID:               uuid.New(),
		CustomerEmail:    shipping.Email,
		CustomerName:     shipping.FullName(),
		Shipping:         shipping,
		Status:           model.OrderStatusCompleted,
		Subtotal:         snapshot.Subtotal,
		Total:            snapshot.Total,
		PaymentSessionID: token,
		PaymentRef:       paymentRef,
	}

	created, err := s.Orders.CreateOrder(ctx, tx, order)
	if err != nil {
		log.Error().Err(err).Msg("failed to create order")
		return nil, fmt.Errorf("%w: %w", model.ErrPersistenceFailure, err)
	}
	if !created {
		// Lost the race to a concurrent completion that has since committed.
		_ = tx.Rollback(ctx)
		committed = true
		result, err := s.lookupReplay(ctx, token)
		if err == nil && result == nil {
			err = fmt.Errorf("%w: order for session vanished", model.ErrPersistenceFailure)
		}
		return result, err
	}

	items := make([]model.OrderItem, 0, len(snapshot.Lines))
	for _, l := range snapshot.Lines {
		items = append(items, model.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
	if err := s.Orders.CreateOrderItems(ctx, tx, items); err != nil {
		log.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order items")
		return nil, fmt.Errorf("%w: %w", model.ErrPersistenceFailure, err)
	}

	entries := make([]*model.InventoryLogEntry, 0, len(snapshot.Lines))
	for _, sale := range snapshot.SaleQuantities() {
		entry, err := s.Inventory.Apply(ctx, tx, model.InventoryChange{
			ProductID: sale.ProductID,
			Type:      model.ChangeTypeSale,
			Quantity:  sale.Quantity,
			Note:      "Order " + order.ID.String(),
			OrderID:   &order.ID,
		})
		if err != nil {
			var de *model.DomainError
			if errors.As(err, &de) {
				// Payment was captured but the goods are gone; an operator
				// has to refund this session.
				log.Error().Err(err).
					Str("product_id", sale.ProductID).
					Int("quantity", sale.Quantity).
					Msg("paid order could not be fulfilled, refund required")
				return nil, err
			}
			log.Error().Err(err).Str("product_id", sale.ProductID).Msg("failed to apply sale")
			return nil, fmt.Errorf("%w: %w", model.ErrPersistenceFailure, err)
		}
		entries = append(entries, entry)

		if err := s.Outbox.Add(ctx, tx, outbox.EventInventoryChanged, entry.ProductID, outbox.NewInventoryChanged(entry)); err != nil {
			log.Error().Err(err).Msg("failed to record inventory event")
			return nil, fmt.Errorf("%w: %w", model.ErrPersistenceFailure, err)
		}
	}

	event := outbox.OrderCompleted{
		OrderID:       order.ID,
		SessionID:     token,
		PaymentRef:    paymentRef,
		CustomerEmail: order.CustomerEmail,
		Total:         order.Total,
		Items:         items,
	}
	if err := s.Outbox.Add(ctx, tx, outbox.EventOrderCompleted, order.ID.String(), event); err != nil {
		log.Error().Err(err).Msg("failed to record order event")
		return nil, fmt.Errorf("%w: %w", model.ErrPersistenceFailure, err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit fulfilment")
		return nil, fmt.Errorf("%w: %w", model.ErrPersistenceFailure, err)
	}
	committed = true

	for _, e := range entries {
		s.Metrics.InventoryChanged(string(e.ChangeType))
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Int("item_count", len(items)).
		Str("total", order.Total.StringFixed(2)).
		Msg("order fulfilled")

	return &model.CompleteOrderResult{OrderID: order.ID}, nil
}
