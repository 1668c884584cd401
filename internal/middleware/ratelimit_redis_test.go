package middleware

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore connects to the Redis named by REDIS_URL, falling back to
// localhost:6379, and skips the calling test when none is reachable.
func redisStore(t *testing.T) (*RedisRateLimitStore, *redis.Client) {
	t.Helper()

	addr := "localhost:6379"
	if url := os.Getenv("REDIS_URL"); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			t.Fatalf("invalid REDIS_URL: %v", err)
		}
		addr = opts.Addr
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return NewRedisRateLimitStore(client), client
}

// uniqueKey keeps parallel test runs from sharing rate limit state.
func uniqueKey(t *testing.T, client *redis.Client, scope string) string {
	key := fmt.Sprintf("user:%s-%d", scope, time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), key) })
	return key
}

func TestRedisRateLimitStore_CountsDownThenBlocks(t *testing.T) {
	store, client := redisStore(t)
	cfg := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}
	key := uniqueKey(t, client, "countdown")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		allowed, remaining, _ := store.Allow(ctx, key, cfg)
		if !allowed {
			t.Fatalf("request %d blocked inside quota", i)
		}
		if want := 5 - i; remaining != want {
			t.Errorf("request %d: remaining = %d, want %d", i, remaining, want)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, key, cfg)
	if allowed || remaining != 0 {
		t.Errorf("over-quota request: allowed=%t remaining=%d, want blocked with 0", allowed, remaining)
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want within (0, 60]", retryAfter)
	}
}

func TestRedisRateLimitStore_KeysAreIsolated(t *testing.T) {
	store, client := redisStore(t)
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	alice := uniqueKey(t, client, "alice")
	bob := uniqueKey(t, client, "bob")
	ctx := context.Background()

	for _, key := range []string{alice, bob} {
		if allowed, _, _ := store.Allow(ctx, key, cfg); !allowed {
			t.Errorf("%s: first request blocked", key)
		}
	}
	for _, key := range []string{alice, bob} {
		if allowed, _, _ := store.Allow(ctx, key, cfg); allowed {
			t.Errorf("%s: second request allowed past the quota", key)
		}
	}
}

func TestRedisRateLimitStore_WindowExpiry(t *testing.T) {
	store, client := redisStore(t)
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 100 * time.Millisecond}
	key := uniqueKey(t, client, "expiry")
	ctx := context.Background()

	if allowed, _, _ := store.Allow(ctx, key, cfg); !allowed {
		t.Fatal("first request blocked")
	}
	if allowed, _, _ := store.Allow(ctx, key, cfg); allowed {
		t.Fatal("second request allowed inside the window")
	}

	time.Sleep(150 * time.Millisecond)

	if allowed, _, _ := store.Allow(ctx, key, cfg); !allowed {
		t.Error("request blocked after the window expired")
	}
}

func TestRedisRateLimitStore_FailsOpen(t *testing.T) {
	// A port nothing listens on stands in for an unreachable Redis.
	client := redis.NewClient(&redis.Options{Addr: "localhost:9999"})
	defer client.Close()

	store := NewRedisRateLimitStore(client)
	cfg := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}

	allowed, remaining, _ := store.Allow(context.Background(), "user:failopen", cfg)
	if !allowed {
		t.Error("request blocked while Redis was unavailable")
	}
	if remaining != cfg.RequestsPerWindow {
		t.Errorf("remaining = %d, want the full quota %d on error", remaining, cfg.RequestsPerWindow)
	}
}
