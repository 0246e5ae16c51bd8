package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"payguard/pkg/platform/sentinel"
)

var claimDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "payguard_consent_spent_claim_duration_ms",
	Help:    "Latency of spent-set claims in Redis in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const spentKeyPrefix = "consent:spent:"

// RedisSpentStore shares the spent set across instances. SET NX decides the
// single winner for a token id.
type RedisSpentStore struct {
	client *redis.Client
}

func NewRedisSpentStore(client *redis.Client) *RedisSpentStore {
	return &RedisSpentStore{client: client}
}

func (s *RedisSpentStore) Claim(ctx context.Context, tokenID string, m Mark, ttl time.Duration) (*Mark, error) {
	start := time.Now()
	defer func() {
		claimDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode mark: %w", err)
	}
	won, err := s.client.SetNX(ctx, spentKeyPrefix+tokenID, payload, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("claim token %s: %w", tokenID, err)
	}
	if won {
		return &m, nil
	}
	existing, err := s.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Expired between SETNX and GET; treat as used.
			return &Mark{Reason: MarkSpent}, sentinel.ErrAlreadyUsed
		}
		return nil, err
	}
	return existing, sentinel.ErrAlreadyUsed
}

func (s *RedisSpentStore) Get(ctx context.Context, tokenID string) (*Mark, error) {
	raw, err := s.client.Get(ctx, spentKeyPrefix+tokenID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read spent mark %s: %w", tokenID, err)
	}
	var m Mark
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode spent mark %s: %w", tokenID, err)
	}
	return &m, nil
}
