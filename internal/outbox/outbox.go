// Package outbox records domain events in the same transaction as the state
// change they describe and relays them to Kafka afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Event types.
const (
	EventOrderCompleted   = "order.completed"
	EventInventoryChanged = "inventory.changed"
)

// Record is one outbox row.
type Record struct {
	ID          int64           `json:"id"`
	EventID     uuid.UUID       `json:"eventId"`
	EventType   string          `json:"eventType"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Store persists and claims outbox records.
type Store interface {
	// Add inserts an event within the caller's transaction.
	Add(ctx context.Context, tx pgx.Tx, eventType, aggregateID string, payload any) error

	// Claim locks up to limit unsent records, hands them to fn and marks them
	// sent if fn succeeds. Records locked by another relay are skipped.
	Claim(ctx context.Context, limit int, fn func(ctx context.Context, records []Record) error) (int, error)

	// Pending counts unsent records.
	Pending(ctx context.Context) (int, error)
}

type pgStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore creates a PostgreSQL-backed outbox store.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) Store {
	return &pgStore{
		pool:   pool,
		logger: logger.With().Str("repository", "outbox").Logger(),
	}
}

func (s *pgStore) Add(ctx context.Context, tx pgx.Tx, eventType, aggregateID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (event_id, event_type, aggregate_id, payload) VALUES ($1, $2, $3, $4)`,
		uuid.New(), eventType, aggregateID, data,
	)
	if err != nil {
		s.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("aggregate_id", aggregateID).
			Msg("failed to insert outbox event")
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func (s *pgStore) Claim(ctx context.Context, limit int, fn func(ctx context.Context, records []Record) error) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, event_id, event_type, aggregate_id, payload, created_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to query pending events: %w", err)
	}

	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &rec.AggregateID, &rec.Payload, &rec.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan outbox record: %w", err)
		}
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating outbox records: %w", err)
	}

	if len(records) == 0 {
		return 0, nil
	}

	if err := fn(ctx, records); err != nil {
		return 0, err
	}

	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if _, err := tx.Exec(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("failed to mark events sent: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit outbox claim: %w", err)
	}
	return len(records), nil
}

func (s *pgStore) Pending(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE sent_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending events: %w", err)
	}
	return n, nil
}
