package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/fair-round-engine/internal/round-service/cache"
	sharedcache "github.com/radieske/fair-round-engine/internal/shared/cache"
)

func connect(t *testing.T) *cache.Locker {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := sharedcache.ConnectRedis(context.Background(), addr)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewLocker(rdb, "test:"+uuid.NewString()+":")
}

func TestLockerExclusive(t *testing.T) {
	l := connect(t)
	ctx := context.Background()

	release, ok, err := l.TryAcquire(ctx, "tick:aviator", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, err := l.TryAcquire(ctx, "tick:aviator", 5*time.Second); err != nil || ok {
		t.Fatalf("second acquire: ok=%v err=%v", ok, err)
	}
	release()
	release2, ok, err := l.TryAcquire(ctx, "tick:aviator", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
	release2()
}

func TestLockerExpires(t *testing.T) {
	l := connect(t)
	ctx := context.Background()

	if _, ok, _ := l.TryAcquire(ctx, "k", 50*time.Millisecond); !ok {
		t.Fatal("acquire failed")
	}
	time.Sleep(120 * time.Millisecond)
	if _, ok, err := l.TryAcquire(ctx, "k", time.Second); err != nil || !ok {
		t.Fatalf("lock did not expire: ok=%v err=%v", ok, err)
	}
}
