package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Publisher delivers a batch of records to the message broker.
type Publisher interface {
	Publish(ctx context.Context, records []Record) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher writes records to topic, keyed by aggregate so events for
// one order or product stay on one partition.
func NewKafkaPublisher(brokers []string, topic string) Publisher {
	return &kafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, records []Record) error {
	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, ToMessage(rec))
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d events: %w", len(msgs), err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// ToMessage maps a record onto a Kafka message.
func ToMessage(rec Record) kafka.Message {
	return kafka.Message{
		Key:   []byte(rec.AggregateID),
		Value: rec.Payload,
		Time:  rec.CreatedAt.UTC(),
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(rec.EventID.String())},
			{Key: "event-type", Value: []byte(rec.EventType)},
		},
	}
}

// Relay periodically moves pending outbox records to a Publisher. Delivery is
// at least once: a crash between publish and commit resends the batch, and
// consumers dedupe on the event-id header.
type Relay struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
	onSent    func(n int)
}

// RelayOption customises a Relay.
type RelayOption func(*Relay)

// WithSentHook registers a callback invoked with the size of every delivered batch.
func WithSentHook(fn func(n int)) RelayOption {
	return func(r *Relay) { r.onSent = fn }
}

const (
	defaultRelayInterval  = time.Second
	defaultRelayBatchSize = 100
)

// NewRelay creates a relay. A non-positive interval or batch size falls back
// to the defaults.
func NewRelay(store Store, publisher Publisher, interval time.Duration, batchSize int, logger zerolog.Logger, opts ...RelayOption) *Relay {
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	if batchSize < 1 {
		batchSize = defaultRelayBatchSize
	}
	r := &Relay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With().Str("worker", "outbox-relay").Logger(),
		onSent:    func(int) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled. Full batches are followed immediately by
// another claim; otherwise the relay waits for the next tick.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Int("batch_size", r.batchSize).Msg("outbox relay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("outbox relay batch failed")
		}
		if err == nil && n == r.batchSize && ctx.Err() == nil {
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce claims and publishes a single batch.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	n, err := r.store.Claim(ctx, r.batchSize, r.publisher.Publish)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.onSent(n)
		r.logger.Debug().Int("count", n).Msg("outbox events published")
	}
	return n, nil
}
