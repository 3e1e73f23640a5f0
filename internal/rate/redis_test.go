package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiter(t *testing.T, cfg Config) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, cfg), mr
}

func TestRedisDeniesEleventhAttemptAndResets(t *testing.T) {
	l, mr := newRedisLimiter(t, DefaultConfig())
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		ok, err := l.Allow(ctx, "203.0.113.9")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !ok {
			t.Fatalf("attempt %d denied", i)
		}
	}
	ok, err := l.Allow(ctx, "203.0.113.9")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatal("expected 11th attempt denied")
	}

	if ttl := mr.TTL("goguard:login:203.0.113.9"); ttl <= 0 || ttl > 15*time.Minute {
		t.Fatalf("unexpected window ttl %v", ttl)
	}

	mr.FastForward(15*time.Minute + time.Second)

	ok, err = l.Allow(ctx, "203.0.113.9")
	if err != nil || !ok {
		t.Fatalf("expected allow after window, got %v %v", ok, err)
	}
	n, err := l.Attempts(ctx, "203.0.113.9")
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected count 1 after reset, got %d", n)
	}
}

func TestRedisEmptyKeyIsExempt(t *testing.T) {
	l, mr := newRedisLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	for i := 0; i < 5; i++ {
		if ok, err := l.Allow(context.Background(), ""); err != nil || !ok {
			t.Fatalf("empty key: %v %v", ok, err)
		}
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no keys, got %v", keys)
	}
}

func TestRedisReset(t *testing.T) {
	l, _ := newRedisLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()
	_, _ = l.Allow(ctx, "k")
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatal("expected deny")
	}
	if err := l.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatal("expected allow after reset")
	}
}

func TestRedisUnavailable(t *testing.T) {
	l, mr := newRedisLimiter(t, DefaultConfig())
	mr.Close()

	_, err := l.Allow(context.Background(), "k")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
