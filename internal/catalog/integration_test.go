package catalog

import (
	"context"
	"testing"

	"storefront/internal/database/dbtest"
	"storefront/internal/metrics"
	"storefront/internal/outbox"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_Integration(t *testing.T) {
	db := dbtest.Setup(t)
	logger := zerolog.Nop()
	ctx := context.Background()

	admin := service.NewAdminService(service.AdminDeps{
		Transactor: repository.NewTransactor(db.Pool, logger),
		Products:   repository.NewProductRepository(db.Pool, logger),
		Orders:     repository.NewOrderRepository(db.Pool, logger),
		Inventory:  repository.NewInventoryRepository(db.Pool, logger),
		Outbox:     outbox.NewStore(db.Pool, logger),
		Metrics:    metrics.New(),
	}, 5, logger)

	path := createSeedFile(t,
		`{"id":"TEE","name":"Classic Tee","price":"19.99","initialStock":40}`,
		`{"id":"CAP","name":"Wool Cap","price":"24.00"}`,
		`{"id":"BAD","name":"","price":"1.00"}`,
	)
	seeder := NewSeeder(NewFileLoader(logger), admin, logger)

	result, err := seeder.Seed(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Created: 2, Rejected: 1}, result)

	// Re-running is a no-op.
	result, err = seeder.Seed(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Skipped: 2, Rejected: 1}, result)

	logs, err := admin.ListInventoryLogs(ctx, "TEE", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 40, logs[0].NewCount)

	discrepancies, err := admin.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, discrepancies)
}
