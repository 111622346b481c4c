package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "personacall:persona:"

// CachedStore is a read-through Redis cache in front of another Store.
// Cache failures are logged and fall through to the inner store.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// NewCachedStore wraps inner with a Redis cache.
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl, log: logger}
}

func (c *CachedStore) Get(ctx context.Context, id string) (Persona, error) {
	key := cacheKeyPrefix + id

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Persona
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			return p, nil
		}
		c.log.Warn("Discarding unreadable cached persona", "persona_id", id)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("Persona cache read failed", "persona_id", id, "error", err)
	}

	p, err := c.inner.Get(ctx, id)
	if err != nil {
		return Persona{}, err
	}

	if data, jerr := json.Marshal(p); jerr == nil {
		if serr := c.client.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.log.Warn("Persona cache write failed", "persona_id", id, "error", serr)
		}
	}
	return p, nil
}

// List is not cached.
func (c *CachedStore) List(ctx context.Context) ([]Persona, error) {
	return c.inner.List(ctx)
}

// Invalidate drops a cached persona.
func (c *CachedStore) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, cacheKeyPrefix+id).Err()
}
