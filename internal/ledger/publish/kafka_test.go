package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"payguard/internal/ledger"
	"payguard/internal/ledger/metrics"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func (p *fakeProducer) Close() { p.closed = true }

func entry(seq uint64) ledger.Entry {
	return ledger.Entry{
		Sequence:  seq,
		Draft:     ledger.Draft{Event: ledger.EventDecision, IntentID: "int-1", Decision: "APPROVE"},
		EntryHash: "hash",
	}
}

func TestPublishWritesKeyedRecord(t *testing.T) {
	producer := &fakeProducer{}
	p := NewWithProducer(producer, "payguard.ledger")

	require.NoError(t, p.Publish(context.Background(), entry(7)))
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "payguard.ledger", rec.Topic)
	assert.Equal(t, []byte("int-1"), rec.Key)
	var got ledger.Entry
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, uint64(7), got.Sequence)
	assert.Contains(t, rec.Headers, kgo.RecordHeader{Key: "sequence", Value: []byte("7")})

	p.Close()
	assert.True(t, producer.closed)
}

func TestPublishOpensCircuitAfterFailures(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	breaker := NewCircuitBreaker(2, time.Minute)
	breaker.now = func() time.Time { return now }
	producer := &fakeProducer{err: errors.New("broker unreachable")}
	m := metrics.NewWith(prometheus.NewRegistry())
	p := NewWithProducer(producer, "payguard.ledger", WithBreaker(breaker), WithMetrics(m))
	ctx := context.Background()

	assert.Error(t, p.Publish(ctx, entry(1)))
	assert.Error(t, p.Publish(ctx, entry(2)))
	assert.True(t, breaker.IsOpen())
	assert.ErrorIs(t, p.Publish(ctx, entry(3)), ErrCircuitOpen)

	// half-open after cooldown; a success closes the circuit
	now = now.Add(time.Minute + time.Second)
	producer.err = nil
	require.NoError(t, p.Publish(ctx, entry(4)))
	assert.False(t, breaker.IsOpen())
	require.Len(t, producer.records, 1)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	cb := NewCircuitBreaker(3, time.Minute)
	cb.now = func() time.Time { return now }
	for range 3 {
		cb.RecordFailure()
	}
	require.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())
	assert.True(t, cb.RecordFailure(), "one failure in half-open reopens")
	assert.False(t, cb.Allow())
}
