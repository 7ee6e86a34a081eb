// Package broadcaster publishes journal events to Kafka.
//
// The event journal doubles as an outbox: every marketplace mutation
// appends an event before the operation returns, and the broadcaster
// drains unpublished events on a timer. Delivery is at-least-once; the
// journal sequence number is the dedup key for consumers.
package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"

	"github.com/longhan2109/nft-marketplace/internal/market/event"
	"github.com/longhan2109/nft-marketplace/internal/services/market/storage"
)

const (
	defaultDrainInterval = 250 * time.Millisecond
	defaultBatchSize     = 100
)

// Broadcaster drains the event journal to a Kafka topic.
type Broadcaster struct {
	store    storage.EventStore
	producer sarama.SyncProducer
	topic    string

	drainInterval time.Duration
	batchSize     int
}

// envelope is the wire shape of a published journal event.
type envelope struct {
	Seq        uint64    `json:"seq"`
	Type       string    `json:"type"`
	Collection string    `json:"collection"`
	TokenID    uint64    `json:"token_id"`
	Actor      string    `json:"actor"`
	Price      uint64    `json:"price"`
	Timestamp  time.Time `json:"timestamp"`
}

// New creates a broadcaster connected to the given Kafka brokers.
func New(store storage.EventStore, brokers []string, topic string) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewWithProducer(store, producer, topic), nil
}

// NewWithProducer creates a broadcaster over an existing producer.
func NewWithProducer(store storage.EventStore, producer sarama.SyncProducer, topic string) *Broadcaster {
	return &Broadcaster{
		store:         store,
		producer:      producer,
		topic:         topic,
		drainInterval: defaultDrainInterval,
		batchSize:     defaultBatchSize,
	}
}

// WithDrainInterval overrides the drain timer period.
func (b *Broadcaster) WithDrainInterval(d time.Duration) *Broadcaster {
	if d > 0 {
		b.drainInterval = d
	}
	return b
}

// Run drains the journal until context cancellation, then closes the
// producer.
func (b *Broadcaster) Run(ctx context.Context) error {
	log.Printf("broadcaster publishing to topic %q", b.topic)
	ticker := time.NewTicker(b.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return b.Close()
		case <-ticker.C:
			if err := b.DrainOnce(ctx); err != nil {
				log.Printf("broadcaster drain: %v", err)
			}
		}
	}
}

// DrainOnce publishes one batch of unpublished events in sequence order.
// A publish failure stops the batch; later events stay unpublished so
// ordering per key is preserved across retries.
func (b *Broadcaster) DrainOnce(ctx context.Context) error {
	events, err := b.store.UnpublishedEvents(ctx, b.batchSize)
	if err != nil {
		return fmt.Errorf("load unpublished events: %w", err)
	}

	for _, evt := range events {
		if err := b.publish(evt); err != nil {
			return fmt.Errorf("publish event %d: %w", evt.Seq, err)
		}
		if err := b.store.MarkEventPublished(ctx, evt.Seq); err != nil {
			return fmt.Errorf("mark event %d published: %w", evt.Seq, err)
		}
	}
	return nil
}

func (b *Broadcaster) publish(evt event.Event) error {
	payload, err := json.Marshal(envelope{
		Seq:        evt.Seq,
		Type:       string(evt.Type),
		Collection: evt.Key.Collection,
		TokenID:    evt.Key.TokenID,
		Actor:      evt.Actor,
		Price:      evt.Price,
		Timestamp:  evt.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("encode event envelope: %w", err)
	}

	_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(evt.Key.String()),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

// Close releases the Kafka producer.
func (b *Broadcaster) Close() error {
	if b == nil || b.producer == nil {
		return nil
	}
	return b.producer.Close()
}

