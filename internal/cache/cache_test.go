package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNilCacheIsNoop(t *testing.T) {
	var c *Redis
	ctx := context.Background()

	if err := c.Set(ctx, 3); err != nil {
		t.Fatalf("set on nil cache: %v", err)
	}
	if _, ok, err := c.Get(ctx); ok || err != nil {
		t.Fatalf("expected miss from nil cache, got ok=%v err=%v", ok, err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate on nil cache: %v", err)
	}
}

func TestRedisAlertCount(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDRESS to run redis cache tests")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("TEST_REDIS_PASSWORD")})
	defer client.Close()

	c := NewAlertCount(client, time.Minute)
	c.key = "stockledger:test:" + time.Now().Format(time.RFC3339Nano)
	defer client.Del(ctx, c.key)

	if _, ok, err := c.Get(ctx); ok || err != nil {
		t.Fatalf("expected initial miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, 4); err != nil {
		t.Fatalf("set: %v", err)
	}
	n, ok, err := c.Get(ctx)
	if err != nil || !ok || n != 4 {
		t.Fatalf("expected cached 4, got %d ok=%v err=%v", n, ok, err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx); ok {
		t.Fatal("expected miss after invalidate")
	}
}
