package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/intent"
	"storefront/internal/metrics"
	"storefront/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

// stubGateway fails every call, optionally by waiting for the deadline.
type stubGateway struct {
	err   error
	block bool
}

func (g stubGateway) Open(ctx context.Context, _ gateway.OpenRequest) (string, error) {
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "", g.err
}

func (g stubGateway) Get(ctx context.Context, _ string) (*gateway.Session, error) {
	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, g.err
}

func newCheckout(repo *MockProductRepository, gw gateway.Gateway) CheckoutService {
	return NewCheckoutService(repo, gw, intent.NewSigner(testSigningKey), metrics.New(),
		CheckoutConfig{Currency: "usd", GatewayTimeout: time.Second}, zerolog.Nop())
}

func TestCheckoutService_BeginCheckout_Success(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	sandbox := gateway.NewSandbox()
	svc := newCheckout(mockRepo, sandbox)

	mockRepo.On("GetByIDs", ctx, []string{"P001", "P002"}).Return([]model.Product{
		{ID: "P002", Name: "Mug", Price: decimal.RequireFromString("8.50"), Stock: 4, Active: true},
		{ID: "P001", Name: "Tee", Price: decimal.RequireFromString("19.99"), Stock: 10, Active: true},
	}, nil)

	resp, err := svc.BeginCheckout(ctx, []model.CartLine{
		{ProductID: "P001", Quantity: 2},
		{ProductID: "P002", Quantity: 1},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionToken)
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("48.48")))
	assert.True(t, resp.Subtotal.Equal(resp.Total))

	req, ok := sandbox.Request(resp.SessionToken)
	require.True(t, ok)
	assert.Equal(t, "usd", req.Currency)
	require.Len(t, req.Lines, 2)
	assert.Equal(t, "Tee", req.Lines[0].Name)
	assert.Equal(t, 2, req.Lines[0].Quantity)

	snapshot, err := intent.NewSigner(testSigningKey).Verify(req.Metadata)
	require.NoError(t, err)
	require.Len(t, snapshot.Lines, 2)
	assert.Equal(t, "P001", snapshot.Lines[0].ProductID)
	assert.True(t, snapshot.Lines[0].UnitPrice.Equal(decimal.RequireFromString("19.99")))
	assert.True(t, snapshot.Total.Equal(resp.Total))

	mockRepo.AssertExpectations(t)
}

func TestCheckoutService_BeginCheckout_MergesRepeatedLines(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	sandbox := gateway.NewSandbox()
	svc := newCheckout(mockRepo, sandbox)

	mockRepo.On("GetByIDs", ctx, []string{"P001"}).Return([]model.Product{
		{ID: "P001", Name: "Tee", Price: decimal.RequireFromString("5"), Stock: 3, Active: true},
	}, nil)

	resp, err := svc.BeginCheckout(ctx, []model.CartLine{
		{ProductID: "P001", Quantity: 2},
		{ProductID: "P001", Quantity: 1},
	})
	require.NoError(t, err)

	req, _ := sandbox.Request(resp.SessionToken)
	require.Len(t, req.Lines, 1)
	assert.Equal(t, 3, req.Lines[0].Quantity)
	assert.True(t, resp.Total.Equal(decimal.NewFromInt(15)))
}

func TestCheckoutService_BeginCheckout_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		lines     []model.CartLine
		products  []model.Product
		expectErr error
		errorMsg  string
	}{
		{
			name:      "empty cart",
			lines:     nil,
			expectErr: model.ErrEmptyCart,
		},
		{
			name:      "zero quantity",
			lines:     []model.CartLine{{ProductID: "P001", Quantity: 0}},
			expectErr: model.ErrInvalidQuantity,
		},
		{
			name:      "unknown product",
			lines:     []model.CartLine{{ProductID: "NOPE", Quantity: 1}},
			products:  []model.Product{},
			expectErr: model.ErrProductNotFound,
			errorMsg:  "NOPE",
		},
		{
			name:  "inactive product",
			lines: []model.CartLine{{ProductID: "P001", Quantity: 1}},
			products: []model.Product{
				{ID: "P001", Name: "Tee", Price: decimal.NewFromInt(5), Stock: 3, Active: false},
			},
			expectErr: model.ErrProductNotFound,
		},
		{
			name:  "insufficient stock",
			lines: []model.CartLine{{ProductID: "P001", Quantity: 5}},
			products: []model.Product{
				{ID: "P001", Name: "Tee", Price: decimal.NewFromInt(5), Stock: 3, Active: true},
			},
			expectErr: model.ErrInsufficientStock,
			errorMsg:  "Only 3 available",
		},
		{
			name:      "repeated lines that would wrap around",
			lines:     []model.CartLine{{ProductID: "P001", Quantity: math.MaxInt}, {ProductID: "P001", Quantity: math.MaxInt}},
			expectErr: model.ErrInvalidQuantity,
		},
		{
			name:      "quantity above stock range",
			lines:     []model.CartLine{{ProductID: "P001", Quantity: model.MaxQuantity + 1}},
			expectErr: model.ErrInvalidQuantity,
		},
		{
			name:  "insufficient stock across repeated lines",
			lines: []model.CartLine{{ProductID: "P001", Quantity: 2}, {ProductID: "P001", Quantity: 2}},
			products: []model.Product{
				{ID: "P001", Name: "Tee", Price: decimal.NewFromInt(5), Stock: 3, Active: true},
			},
			expectErr: model.ErrInsufficientStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mockRepo := new(MockProductRepository)
			sandbox := gateway.NewSandbox()
			svc := newCheckout(mockRepo, sandbox)

			if tt.products != nil {
				mockRepo.On("GetByIDs", ctx, mock.Anything).Return(tt.products, nil)
			}

			resp, err := svc.BeginCheckout(ctx, tt.lines)

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tt.expectErr)
			if tt.errorMsg != "" {
				assert.Contains(t, err.Error(), tt.errorMsg)
			}
			if tt.products == nil {
				mockRepo.AssertNotCalled(t, "GetByIDs", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCheckoutService_BeginCheckout_InsufficientStockNamesAvailable(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	svc := newCheckout(mockRepo, gateway.NewSandbox())

	mockRepo.On("GetByIDs", ctx, []string{"P001"}).Return([]model.Product{
		{ID: "P001", Name: "Tee", Price: decimal.NewFromInt(5), Stock: 3, Active: true},
	}, nil)

	_, err := svc.BeginCheckout(ctx, []model.CartLine{{ProductID: "P001", Quantity: 5}})

	var de *model.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "P001", de.ProductID)
	assert.Equal(t, "Tee", de.ProductName)
	assert.Equal(t, 3, de.Available)
}

func TestCheckoutService_BeginCheckout_GatewayFailures(t *testing.T) {
	tests := []struct {
		name string
		gw   stubGateway
	}{
		{name: "gateway error", gw: stubGateway{err: errors.New("connection refused")}},
		{name: "gateway timeout", gw: stubGateway{block: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			mockRepo := new(MockProductRepository)
			svc := NewCheckoutService(mockRepo, tt.gw, intent.NewSigner(testSigningKey), metrics.New(),
				CheckoutConfig{Currency: "usd", GatewayTimeout: 20 * time.Millisecond}, zerolog.Nop())

			mockRepo.On("GetByIDs", ctx, []string{"P001"}).Return([]model.Product{
				{ID: "P001", Name: "Tee", Price: decimal.NewFromInt(5), Stock: 3, Active: true},
			}, nil)

			resp, err := svc.BeginCheckout(ctx, []model.CartLine{{ProductID: "P001", Quantity: 1}})

			assert.Nil(t, resp)
			assert.ErrorIs(t, err, model.ErrGatewayUnavailable)
			assert.Equal(t, model.ErrCodeGatewayUnavailable, model.CodeOf(err))
		})
	}
}

func TestCheckoutService_BeginCheckout_RepositoryError(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	svc := newCheckout(mockRepo, gateway.NewSandbox())

	mockRepo.On("GetByIDs", ctx, []string{"P001"}).Return(nil, errors.New("database error"))

	_, err := svc.BeginCheckout(ctx, []model.CartLine{{ProductID: "P001", Quantity: 1}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load products")
	assert.Equal(t, model.ErrCodeInternalError, model.CodeOf(err))
}
