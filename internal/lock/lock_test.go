package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Acquire(ctx, "doc:1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = unlock(ctx)
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Fatalf("expected at most one holder, saw %d", peak)
	}
	if len(l.slots) != 0 {
		t.Fatalf("expected idle keys to be dropped, got %d", len(l.slots))
	}
}

func TestLocalDifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlockA, err := l.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer unlockA(ctx)

	timeout, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := l.Acquire(timeout, "b")
	if err != nil {
		t.Fatalf("acquire b while a held: %v", err)
	}
	_ = unlockB(ctx)
}

func TestLocalAcquireHonoursContext(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlock, err := l.Acquire(ctx, "doc:7")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(timeout, "doc:7"); !errors.Is(err, ErrNotObtained) {
		t.Fatalf("expected ErrNotObtained, got %v", err)
	}

	_ = unlock(ctx)
	_ = unlock(ctx)
	again, err := l.Acquire(ctx, "doc:7")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = again(ctx)
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDRESS to run redis lock tests")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, os.Getenv("TEST_REDIS_PASSWORD"))
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	defer client.Close()

	locker := NewRedis(client, 2*time.Second)
	key := DocumentKey("sales_invoice", time.Now().UnixNano())

	unlock, err := locker.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	timeout, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(timeout, key); !errors.Is(err, ErrNotObtained) {
		t.Fatalf("expected ErrNotObtained while held, got %v", err)
	}

	if err := unlock(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := locker.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = again(ctx)
}
