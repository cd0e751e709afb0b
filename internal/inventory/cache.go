package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahinestrog/mypos/internal/checkout"
)

var ErrCacheMiss = errors.New("snapshot cache miss")

// SnapshotCache shares the last fetched snapshot between cashier instances.
type SnapshotCache interface {
	Get(ctx context.Context) (*Snapshot, error)
	Set(ctx context.Context, s *Snapshot) error
	Delete(ctx context.Context) error
}

const snapshotKey = "pos:inventory:snapshot"

type cachedSnapshot struct {
	FetchedAt time.Time `json:"fetched_at"`
	Items     []itemDTO `json:"items"`
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context) (*Snapshot, error) {
	data, err := r.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cs cachedSnapshot
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot failed: %w", err)
	}
	snap, err := decodeSnapshot(cs)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *RedisCache) Set(ctx context.Context, s *Snapshot) error {
	cs := cachedSnapshot{FetchedAt: s.FetchedAt, Items: make([]itemDTO, 0, s.Len())}
	for _, it := range s.Items() {
		cs.Items = append(cs.Items, fromItem(it))
	}
	data, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func decodeSnapshot(cs cachedSnapshot) (*Snapshot, error) {
	items := make([]checkout.Item, 0, len(cs.Items))
	for _, d := range cs.Items {
		it, err := d.toItem()
		if err != nil {
			return nil, fmt.Errorf("cached item %d: %w", d.ItemID, err)
		}
		items = append(items, it)
	}
	return NewSnapshot(items, cs.FetchedAt), nil
}
