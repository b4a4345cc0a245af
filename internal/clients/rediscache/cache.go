package rediscache

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/floatchat/floatchat-backend/internal/platform/logger"
)

const (
	keyPrefix     = "floatchat:query:"
	recentKey     = "floatchat:recent_queries"
	recentMaxSize = 100
)

// Cache is the shared query-result cache. Redis is the primary backend; when
// it is unreachable the cache degrades to a process-local LRU so the read
// path keeps working. Last-writer-wins races are fine because every writer
// computes the same canonical payload for a given fingerprint.
type Cache struct {
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int
	log        *logger.Logger

	mu       sync.Mutex
	local    map[string]localEntry
	eviction *list.List
}

type localEntry struct {
	payload   []byte
	expiresAt time.Time
	elem      *list.Element
}

func New(rdb *redis.Client, ttl time.Duration, maxEntries int, baseLog *logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Cache{
		rdb:        rdb,
		ttl:        ttl,
		maxEntries: maxEntries,
		log:        baseLog.With("service", "QueryCache"),
		local:      make(map[string]localEntry),
		eviction:   list.New(),
	}
}

// Get unmarshals a cached payload into dest. The second return is the hit
// flag; a redis transport error falls back to the process-local cache.
func (c *Cache) Get(ctx context.Context, fingerprint string, dest interface{}) (bool, error) {
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, keyPrefix+fingerprint).Bytes()
		switch {
		case err == nil:
			if err := json.Unmarshal(raw, dest); err != nil {
				return false, fmt.Errorf("decode cached payload: %w", err)
			}
			return true, nil
		case errors.Is(err, redis.Nil):
			return false, nil
		default:
			c.log.Warn("redis get failed, falling back to local cache", "error", err)
		}
	}
	return c.localGet(fingerprint, dest)
}

// Set stores the canonical payload under its fingerprint.
func (c *Cache) Set(ctx context.Context, fingerprint string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, keyPrefix+fingerprint, raw, c.ttl).Err(); err != nil {
			c.log.Warn("redis set failed, falling back to local cache", "error", err)
		} else {
			return nil
		}
	}
	c.localSet(fingerprint, raw)
	return nil
}

// PushRecent records a query in the recent-queries ring.
func (c *Cache) PushRecent(ctx context.Context, query string) {
	if c.rdb == nil {
		return
	}
	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, recentKey, query)
	pipe.LTrim(ctx, recentKey, 0, recentMaxSize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Debug("recent query push failed", "error", err)
	}
}

// Recent returns the most recent queries, newest first.
func (c *Cache) Recent(ctx context.Context, limit int) ([]string, error) {
	if c.rdb == nil {
		return nil, nil
	}
	if limit <= 0 || limit > recentMaxSize {
		limit = 10
	}
	return c.rdb.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
}

func (c *Cache) localGet(fingerprint string, dest interface{}) (bool, error) {
	c.mu.Lock()
	entry, ok := c.local[fingerprint]
	if ok && time.Now().After(entry.expiresAt) {
		c.eviction.Remove(entry.elem)
		delete(c.local, fingerprint)
		ok = false
	}
	if ok {
		c.eviction.MoveToFront(entry.elem)
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false, fmt.Errorf("decode cached payload: %w", err)
	}
	return true, nil
}

func (c *Cache) localSet(fingerprint string, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.local[fingerprint]; ok {
		c.eviction.Remove(existing.elem)
	}
	elem := c.eviction.PushFront(fingerprint)
	c.local[fingerprint] = localEntry{
		payload:   raw,
		expiresAt: time.Now().Add(c.ttl),
		elem:      elem,
	}
	for len(c.local) > c.maxEntries {
		oldest := c.eviction.Back()
		if oldest == nil {
			break
		}
		c.eviction.Remove(oldest)
		delete(c.local, oldest.Value.(string))
	}
}
