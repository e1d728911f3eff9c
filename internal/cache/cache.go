// Package cache keeps short-lived copies of values that are polled often and
// tolerate staleness, such as the unresolved alert count.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const openAlertCountKey = "stockledger:alerts:unresolved-count"

// Counter is a single cached integer. A nil *Redis is valid and caches nothing.
type Counter interface {
	Get(ctx context.Context) (int, bool, error)
	Set(ctx context.Context, n int) error
	Invalidate(ctx context.Context) error
}

type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewAlertCount(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, key: openAlertCountKey, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context) (int, bool, error) {
	if r == nil || r.client == nil {
		return 0, false, nil
	}
	raw, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", r.key, err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("decode %s: %w", r.key, err)
	}
	return n, true, nil
}

func (r *Redis) Set(ctx context.Context, n int) error {
	if r == nil || r.client == nil {
		return nil
	}
	if err := r.client.Set(ctx, r.key, n, r.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context) error {
	if r == nil || r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", r.key, err)
	}
	return nil
}
