package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/floatchat/floatchat-backend/internal/platform/logger"
)

type payload struct {
	Rows []string `json:"rows"`
}

func testCache(t *testing.T, ttl time.Duration, maxEntries int) *Cache {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	// nil redis client: exercises the local fallback path.
	return New(nil, ttl, maxEntries, log)
}

func TestLocalCacheRoundTrip(t *testing.T) {
	c := testCache(t, time.Minute, 8)
	ctx := context.Background()

	var miss payload
	hit, err := c.Get(ctx, "fp-1", &miss)
	if err != nil || hit {
		t.Fatalf("cold get: hit=%v err=%v", hit, err)
	}

	if err := c.Set(ctx, "fp-1", payload{Rows: []string{"a", "b"}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	hit, err = c.Get(ctx, "fp-1", &got)
	if err != nil || !hit {
		t.Fatalf("warm get: hit=%v err=%v", hit, err)
	}
	if len(got.Rows) != 2 || got.Rows[0] != "a" {
		t.Fatalf("payload mismatch: %+v", got)
	}
}

func TestLocalCacheTTLExpiry(t *testing.T) {
	c := testCache(t, 10*time.Millisecond, 8)
	ctx := context.Background()

	if err := c.Set(ctx, "fp-ttl", payload{Rows: []string{"x"}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	var got payload
	hit, err := c.Get(ctx, "fp-ttl", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit {
		t.Fatalf("expired entry must miss")
	}
}

func TestLocalCacheLRUBound(t *testing.T) {
	c := testCache(t, time.Minute, 2)
	ctx := context.Background()

	_ = c.Set(ctx, "a", payload{})
	_ = c.Set(ctx, "b", payload{})
	_ = c.Set(ctx, "c", payload{})

	var got payload
	if hit, _ := c.Get(ctx, "a", &got); hit {
		t.Fatalf("oldest entry must be evicted at the LRU bound")
	}
	if hit, _ := c.Get(ctx, "c", &got); !hit {
		t.Fatalf("newest entry must survive")
	}
}
