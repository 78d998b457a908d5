package cache

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestRedisCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRedis(t)
	c := NewRedis(client)
	k := key("u1", "organization", "org_1", "update")

	if _, ok := c.Get(ctx, k); ok {
		t.Fatal("expected cache miss")
	}

	c.Set(ctx, k, true)
	allowed, ok := c.Get(ctx, k)
	if !ok || !allowed {
		t.Fatalf("expected cached allow, got allowed=%v ok=%v", allowed, ok)
	}

	denied := key("u2", "organization", "org_1", "update")
	c.Set(ctx, denied, false)
	allowed, ok = c.Get(ctx, denied)
	if !ok || allowed {
		t.Fatalf("expected cached denial, got allowed=%v ok=%v", allowed, ok)
	}
}

func TestRedisCacheTTL(t *testing.T) {
	ctx := context.Background()
	client, server := newTestRedis(t)
	ttl := 2 * time.Minute
	c := NewRedis(client, WithRedisTTL(ttl), WithKeyPrefix("test"))

	c.Set(ctx, key("u1", "organization", "org_1", "update"), true)

	remaining := server.TTL("test:i:organization:org_1")
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("expected ttl within (0, %v], got %v", ttl, remaining)
	}

	server.FastForward(ttl + time.Second)
	if _, ok := c.Get(ctx, key("u1", "organization", "org_1", "update")); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestRedisCacheInvalidateInstance(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestRedis(t)
	c := NewRedis(client)

	k1 := key("u1", "organization", "org_1", "update")
	k2 := key("u1", "organization", "org_2", "update")
	c.Set(ctx, k1, true)
	c.Set(ctx, k2, true)

	c.InvalidateInstance(ctx, "organization", "org_1")

	if _, ok := c.Get(ctx, k1); ok {
		t.Fatal("org_1 should be invalidated")
	}
	if _, ok := c.Get(ctx, k2); !ok {
		t.Fatal("org_2 should still be cached")
	}
}

func TestRedisCacheInvalidateUser(t *testing.T) {
	ctx := context.Background()
	client, server := newTestRedis(t)
	c := NewRedis(client, WithKeyPrefix("test"))

	k1 := key("u1", "organization", "org_1", "update")
	k2 := key("u1", "system", "", "manageSystem")
	k3 := key("u2", "organization", "org_9", "update")
	c.Set(ctx, k1, true)
	c.Set(ctx, k2, true)
	c.Set(ctx, k3, true)

	c.InvalidateUser(ctx, "u1")

	if _, ok := c.Get(ctx, k1); ok {
		t.Fatal("u1 organization entry should be invalidated")
	}
	if _, ok := c.Get(ctx, k2); ok {
		t.Fatal("u1 system entry should be invalidated")
	}
	if _, ok := c.Get(ctx, k3); !ok {
		t.Fatal("u2 on an unrelated instance should still be cached")
	}
	if server.Exists("test:u:u1") {
		t.Fatal("user index should be removed")
	}
}

func TestRedisCacheErrorsAreMisses(t *testing.T) {
	ctx := context.Background()
	client := red.NewClient(&red.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	var buf bytes.Buffer
	c := NewRedis(client, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	k := key("u1", "organization", "org_1", "update")
	c.Set(ctx, k, true)
	if _, ok := c.Get(ctx, k); ok {
		t.Fatal("expected miss when redis is down")
	}
	if !strings.Contains(buf.String(), "exists cache error") {
		t.Fatalf("expected logged error, got %q", buf.String())
	}
}
