package repository

import (
	"context"
	"testing"

	"storefront/internal/database/dbtest"
	"storefront/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testRepos struct {
	pool      *pgxpool.Pool
	tx        Transactor
	products  ProductRepository
	orders    OrderRepository
	inventory InventoryRepository
}

func setupRepos(t *testing.T) *testRepos {
	db := dbtest.Setup(t)
	logger := zerolog.Nop()
	return &testRepos{
		pool:      db.Pool,
		tx:        NewTransactor(db.Pool, logger),
		products:  NewProductRepository(db.Pool, logger),
		orders:    NewOrderRepository(db.Pool, logger),
		inventory: NewInventoryRepository(db.Pool, logger),
	}
}

// seedProduct creates a product and ledgers its opening stock the same way
// the admin service does.
func seedProduct(t *testing.T, r *testRepos, id, name string, price string, stock int) model.Product {
	t.Helper()
	ctx := context.Background()

	p := model.Product{
		ID:     id,
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Active: true,
	}

	tx, err := r.tx.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	require.NoError(t, r.products.Create(ctx, tx, &p))
	if stock > 0 {
		_, err = r.inventory.Apply(ctx, tx, model.InventoryChange{
			ProductID: id,
			Type:      model.ChangeTypeRestock,
			NewCount:  stock,
			Note:      "Initial stock",
		})
		require.NoError(t, err)
		p.Stock = stock
	}
	require.NoError(t, tx.Commit(ctx))
	return p
}
