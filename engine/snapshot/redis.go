package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/WessleyAI/showpulse/engine/show"
	"github.com/WessleyAI/showpulse/engine/summary"
)

const keyPrefix = "showpulse:"

// RedisStore keeps snapshots as JSON strings in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps client. A zero ttl keeps keys forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func snapshotKey(date, shard string) string { return keyPrefix + "snapshot:" + date + ":" + shard }
func summaryKey(date, shard string) string  { return keyPrefix + "summary:" + date + ":" + shard }
func finalKey(kind, date string) string     { return keyPrefix + "final:" + kind + ":" + date }

func (r *RedisStore) get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (r *RedisStore) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, date, shard string) ([]show.Record, error) {
	key := snapshotKey(date, shard)
	b, err := r.get(ctx, key)
	if err != nil || b == nil {
		return nil, err
	}
	return decodeRecords(key, b)
}

func (r *RedisStore) Save(ctx context.Context, date, shard string, records []show.Record) error {
	if records == nil {
		records = []show.Record{}
	}
	return r.set(ctx, snapshotKey(date, shard), records)
}

func (r *RedisStore) LoadSummary(ctx context.Context, date, shard string) (summary.Summary, error) {
	key := summaryKey(date, shard)
	b, err := r.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return decodeSummary(key, b)
}

func (r *RedisStore) SaveSummary(ctx context.Context, date, shard string, s summary.Summary) error {
	return r.set(ctx, summaryKey(date, shard), s)
}

func (r *RedisStore) Shards(ctx context.Context, date string) ([]string, error) {
	prefix := snapshotKey(date, "")
	var shards []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		shards = append(shards, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sortShards(shards)
	return shards, nil
}

func (r *RedisStore) SaveCombined(ctx context.Context, date string, d Detailed, s Summarized) error {
	if err := r.set(ctx, finalKey("detailed", date), d); err != nil {
		return err
	}
	return r.set(ctx, finalKey("summary", date), s)
}

func (r *RedisStore) LoadCombined(ctx context.Context, date string) (Detailed, Summarized, error) {
	var (
		d Detailed
		s Summarized
	)
	for key, dst := range map[string]any{finalKey("detailed", date): &d, finalKey("summary", date): &s} {
		b, err := r.get(ctx, key)
		if err != nil {
			return d, s, err
		}
		if b == nil {
			return d, s, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err := json.Unmarshal(b, dst); err != nil {
			return d, s, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
		}
	}
	return d, s, nil
}
