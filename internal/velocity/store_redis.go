package velocity

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"payguard/internal/domain"
)

var redisOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "payguard_velocity_redis_duration_ms",
	Help:    "Latency of velocity store operations in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
}, []string{"op"})

const (
	txKeyPrefix   = "velocity:tx:"
	hourKeyPrefix = "velocity:hours:"
	geoKeyPrefix  = "velocity:geo:"
)

// RedisStore keeps history in a sorted set scored by unix millis, the hour
// histogram in a hash and recent locations in a capped list.
type RedisStore struct {
	client *redis.Client
	limits Limits
	// idle expires a user's keys after this long without activity
	idle time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithIdleExpiry sets how long an inactive user's keys survive.
func WithIdleExpiry(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.idle = d
		}
	}
}

// NewRedisStore constructs a Redis-backed velocity store.
func NewRedisStore(client *redis.Client, limits Limits, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		limits: limits,
		idle:   DefaultIdleExpiry,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type txMember struct {
	domain.Transaction
	// Nonce keeps identical payments in the same millisecond distinct in the set.
	Nonce string `json:"nonce"`
}

// Record appends an executed payment. All writes go in one MULTI/EXEC.
func (s *RedisStore) Record(ctx context.Context, userID string, tx domain.Transaction) error {
	defer observe("record", time.Now())

	member, err := json.Marshal(txMember{Transaction: tx, Nonce: tx.IntentID})
	if err != nil {
		return fmt.Errorf("encode velocity entry: %w", err)
	}
	txKey, hourKey, geoKey := keys(userID)
	cutoff := tx.At.Add(-s.limits.Window).UnixMilli()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, txKey, redis.Z{Score: float64(tx.At.UnixMilli()), Member: member})
		pipe.ZRemRangeByScore(ctx, txKey, "-inf", strconv.FormatInt(cutoff, 10))
		if s.limits.MaxEntries > 0 {
			pipe.ZRemRangeByRank(ctx, txKey, 0, int64(-s.limits.MaxEntries-1))
		}
		pipe.HIncrBy(ctx, hourKey, strconv.Itoa(tx.At.UTC().Hour()), 1)
		if tx.Geolocation != "" {
			pipe.LRem(ctx, geoKey, 0, tx.Geolocation)
			pipe.LPush(ctx, geoKey, tx.Geolocation)
			if s.limits.MaxGeos > 0 {
				pipe.LTrim(ctx, geoKey, 0, int64(s.limits.MaxGeos-1))
			}
		}
		for _, k := range []string{txKey, hourKey, geoKey} {
			pipe.Expire(ctx, k, s.idle)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record velocity entry: %w", err)
	}
	return nil
}

// History reads the user's history as of now in a single round trip.
func (s *RedisStore) History(ctx context.Context, userID string, now time.Time) (domain.History, error) {
	defer observe("history", time.Now())

	txKey, hourKey, geoKey := keys(userID)
	from := strconv.FormatInt(now.Add(-s.limits.Window).UnixMilli(), 10)
	to := strconv.FormatInt(now.UnixMilli(), 10)

	pipe := s.client.Pipeline()
	rangeCmd := pipe.ZRangeByScore(ctx, txKey, &redis.ZRangeBy{Min: "(" + from, Max: to})
	hoursCmd := pipe.HGetAll(ctx, hourKey)
	geoCmd := pipe.LRange(ctx, geoKey, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.History{}, fmt.Errorf("read velocity history: %w", err)
	}

	var h domain.History
	for _, raw := range rangeCmd.Val() {
		var m txMember
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return domain.History{}, fmt.Errorf("decode velocity entry: %w", err)
		}
		h.Recent = append(h.Recent, m.Transaction)
	}
	for field, v := range hoursCmd.Val() {
		hour, err := strconv.Atoi(field)
		if err != nil || hour < 0 || hour > 23 {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		h.HourHistogram[hour] = n
	}
	h.RecentGeos = geoCmd.Val()
	return h, nil
}

func keys(userID string) (string, string, string) {
	return txKeyPrefix + userID, hourKeyPrefix + userID, geoKeyPrefix + userID
}

func observe(op string, start time.Time) {
	redisOpDuration.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}
