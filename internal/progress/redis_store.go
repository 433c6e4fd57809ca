package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/healthspec-ai/healthspec/internal/domain"
)

// RedisStore persists per-job event logs as Redis lists. Useful when progress
// must survive process restarts or be shared across replicas. Key TTLs stand
// in for the memory store's eviction sweep.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	Prefix   string
	TTL      time.Duration
}

// NewRedisStore creates a Redis-backed progress store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "hs:progress:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (s *RedisStore) key(jobID string) string {
	return s.prefix + jobID
}

// Append pushes an event onto the job's list and refreshes the key TTL.
func (s *RedisStore) Append(ctx context.Context, jobID string, event domain.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := s.key(jobID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}

// List returns the full ordered event history for a job.
func (s *RedisStore) List(ctx context.Context, jobID string) ([]domain.ProgressEvent, error) {
	raw, err := s.client.LRange(ctx, s.key(jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	events := make([]domain.ProgressEvent, 0, len(raw))
	for _, item := range raw {
		var ev domain.ProgressEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Latest returns the most recent event for a job, or nil when unknown.
func (s *RedisStore) Latest(ctx context.Context, jobID string) (*domain.ProgressEvent, error) {
	raw, err := s.client.LIndex(ctx, s.key(jobID), -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis lindex: %w", err)
	}

	var ev domain.ProgressEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &ev, nil
}

// Evict is a no-op: Redis key TTLs handle expiry.
func (s *RedisStore) Evict(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
