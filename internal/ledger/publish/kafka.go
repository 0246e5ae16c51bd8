// Package publish streams persisted ledger entries to Kafka for downstream
// compliance consumers. Publishing happens after persistence and never
// decides whether an append succeeded.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"payguard/internal/ledger"
	"payguard/internal/ledger/metrics"
)

// ErrCircuitOpen is returned while the breaker suppresses publishing.
var ErrCircuitOpen = errors.New("ledger publisher circuit open")

// Producer is the part of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type KafkaPublisher struct {
	producer Producer
	topic    string
	timeout  time.Duration
	breaker  *CircuitBreaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *KafkaPublisher) {
		p.metrics = m
	}
}

func WithBreaker(cb *CircuitBreaker) Option {
	return func(p *KafkaPublisher) {
		if cb != nil {
			p.breaker = cb
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(p *KafkaPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewKafkaPublisher connects a franz-go client to brokers.
func NewKafkaPublisher(brokers []string, topic string, opts ...Option) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return NewWithProducer(client, topic, opts...), nil
}

// NewWithProducer builds a publisher over an existing producer.
func NewWithProducer(producer Producer, topic string, opts ...Option) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		timeout:  2 * time.Second,
		breaker:  NewCircuitBreaker(5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes e keyed by intent id so one intent's entries stay ordered
// within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, e ledger.Entry) error {
	if !p.breaker.Allow() {
		p.metrics.IncPublishDropped()
		return ErrCircuitOpen
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode ledger entry %d: %w", e.Sequence, err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.IntentID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte(e.Event)},
			{Key: "sequence", Value: []byte(strconv.FormatUint(e.Sequence, 10))},
			{Key: "entry_hash", Value: []byte(e.EntryHash)},
		},
		Timestamp: e.Timestamp,
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		if p.breaker.RecordFailure() {
			p.metrics.SetBreakerOpen(true)
			if p.logger != nil {
				p.logger.WarnContext(ctx, "ledger publisher circuit opened", "topic", p.topic, "error", err)
			}
		}
		return fmt.Errorf("publish ledger entry %d: %w", e.Sequence, err)
	}
	p.breaker.RecordSuccess()
	p.metrics.SetBreakerOpen(false)
	return nil
}

// Close flushes and closes the underlying client.
func (p *KafkaPublisher) Close() {
	p.producer.Close()
}
