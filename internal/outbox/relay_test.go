package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeStore hands out its queued records and drops them once fn succeeds,
// mirroring the commit-on-success behaviour of the Postgres store.
type fakeStore struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (s *fakeStore) Add(context.Context, pgx.Tx, string, string, any) error {
	return nil
}

func (s *fakeStore) Claim(ctx context.Context, limit int, fn func(ctx context.Context, records []Record) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}
	batch := s.records
	if len(batch) > limit {
		batch = batch[:limit]
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := fn(ctx, batch); err != nil {
		return 0, err
	}
	s.records = s.records[len(batch):]
	return len(batch), nil
}

func (s *fakeStore) Pending(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, records []Record) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

func makeRecords(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			ID:          int64(i + 1),
			EventID:     uuid.New(),
			EventType:   EventInventoryChanged,
			AggregateID: "P001",
			Payload:     []byte(`{"productId":"P001"}`),
			CreatedAt:   time.Now(),
		}
	}
	return out
}

func TestRelay_RelayOnce_PublishesBatch(t *testing.T) {
	store := &fakeStore{records: makeRecords(3)}
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(r []Record) bool { return len(r) == 2 })).Return(nil).Once()

	var sent int
	relay := NewRelay(store, publisher, time.Second, 2, zerolog.Nop(), WithSentHook(func(n int) { sent += n }))

	n, err := relay.RelayOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, sent)
	pending, _ := store.Pending(context.Background())
	assert.Equal(t, 1, pending)
	publisher.AssertExpectations(t)
}

func TestRelay_RelayOnce_PublishFailureKeepsRecords(t *testing.T) {
	store := &fakeStore{records: makeRecords(2)}
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	relay := NewRelay(store, publisher, time.Second, 10, zerolog.Nop())

	n, err := relay.RelayOnce(context.Background())

	require.Error(t, err)
	assert.Equal(t, 0, n)
	pending, _ := store.Pending(context.Background())
	assert.Equal(t, 2, pending)
}

func TestRelay_RelayOnce_Empty(t *testing.T) {
	publisher := new(MockPublisher)
	relay := NewRelay(&fakeStore{}, publisher, time.Second, 10, zerolog.Nop())

	n, err := relay.RelayOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestRelay_Run_DrainsUntilCancelled(t *testing.T) {
	store := &fakeStore{records: makeRecords(5)}
	publisher := new(MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	relay := NewRelay(store, publisher, 10*time.Millisecond, 2, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	assert.Eventually(t, func() bool {
		n, _ := store.Pending(context.Background())
		return n == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
}

type countingStore struct {
	*fakeStore
	claims atomic.Int64
}

func (s *countingStore) Claim(ctx context.Context, limit int, fn func(ctx context.Context, records []Record) error) (int, error) {
	s.claims.Add(1)
	return s.fakeStore.Claim(ctx, limit, fn)
}

func TestRelay_Run_NonPositiveSettingsUseDefaults(t *testing.T) {
	store := &countingStore{fakeStore: &fakeStore{}}
	relay := NewRelay(store, new(MockPublisher), 0, 0, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
	assert.LessOrEqual(t, store.claims.Load(), int64(2))
}

func TestToMessage(t *testing.T) {
	rec := makeRecords(1)[0]
	rec.EventType = EventOrderCompleted
	rec.AggregateID = "order-1"

	msg := ToMessage(rec)

	assert.Equal(t, []byte("order-1"), msg.Key)
	assert.JSONEq(t, `{"productId":"P001"}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event-id", msg.Headers[0].Key)
	assert.Equal(t, rec.EventID.String(), string(msg.Headers[0].Value))
	assert.Equal(t, EventOrderCompleted, string(msg.Headers[1].Value))
}
