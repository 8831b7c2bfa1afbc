package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisLocker_ExclusiveUntilReleased(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, "test:")

	release, err := locker.Acquire(ctx, "complete:cs_1", 5*time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "complete:cs_1", 5*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := locker.Acquire(ctx, "complete:cs_2", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))

	again, err := locker.Acquire(ctx, "complete:cs_1", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLocker_StaleReleaseKeepsNewOwner(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, "test:")

	stale, err := locker.Acquire(ctx, "k", 100*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(250 * time.Millisecond)

	fresh, err := locker.Acquire(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))

	_, err = locker.Acquire(ctx, "k", 5*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired, "stale release must not drop the new owner's lock")

	require.NoError(t, fresh(ctx))
}

func TestRedisLocker_ConcurrentAcquire(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	locker := NewRedisLocker(client, "test:")

	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.Acquire(ctx, "race", 5*time.Second); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestNopLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewNopLocker()

	first, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	second, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	assert.NoError(t, first(ctx))
	assert.NoError(t, second(ctx))
}
