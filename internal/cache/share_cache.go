// Package cache keeps resolved share-link payloads in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"whiteboard/api/internal/board"
)

const (
	defaultTTL = 30 * time.Second
	// generationTTL outlives any read that could still hold an old value.
	generationTTL = 24 * time.Hour
)

// ErrStale is returned by Put when the board changed after the caller took
// its generation. Nothing is stored.
var ErrStale = errors.New("share cache: payload is stale")

// ShareCache is a read-through cache for GET /api/share/{shareId}.
//
// Every Invalidate bumps a per-share generation counter. A reader takes the
// generation before reading the store and hands it to Put, which only writes
// if no invalidation happened in between. A payload read before an
// unpublish can therefore never be cached after it.
type ShareCache struct {
	client    *redis.Client
	prefix    string
	genPrefix string
	ttl       time.Duration
}

// NewShareCache connects to redisURL and pings it once.
func NewShareCache(redisURL string, ttl time.Duration) (*ShareCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewShareCacheWithClient(client, ttl), nil
}

// NewShareCacheWithClient wraps an existing client.
func NewShareCacheWithClient(client *redis.Client, ttl time.Duration) *ShareCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ShareCache{client: client, prefix: "share:", genPrefix: "share-gen:", ttl: ttl}
}

func (c *ShareCache) key(shareID string) string {
	return c.prefix + shareID
}

func (c *ShareCache) genKey(shareID string) string {
	return c.genPrefix + shareID
}

// Generation returns the current invalidation count for shareID. Take it
// before reading the store, then pass it to Put.
func (c *ShareCache) Generation(ctx context.Context, shareID string) (int64, error) {
	return readGeneration(ctx, c.client, c.genKey(shareID))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, cmd getter, key string) (int64, error) {
	gen, err := cmd.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read share generation: %w", err)
	}
	return gen, nil
}

// Get returns the cached payload. A miss is (zero, false, nil).
func (c *ShareCache) Get(ctx context.Context, shareID string) (board.Whiteboard, bool, error) {
	raw, err := c.client.Get(ctx, c.key(shareID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return board.Whiteboard{}, false, nil
	}
	if err != nil {
		return board.Whiteboard{}, false, fmt.Errorf("read shared whiteboard: %w", err)
	}

	var item board.Whiteboard
	if err := json.Unmarshal(raw, &item); err != nil {
		return board.Whiteboard{}, false, fmt.Errorf("unmarshal shared whiteboard: %w", err)
	}
	return item, true, nil
}

// Put stores a published payload read at generation. Drafts are never
// cached. If the share was invalidated since, Put stores nothing and returns
// ErrStale.
func (c *ShareCache) Put(ctx context.Context, item board.Whiteboard, generation int64) error {
	if item.Status != board.StatusPublished || item.ShareID == "" {
		return nil
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal shared whiteboard: %w", err)
	}

	genKey := c.genKey(item.ShareID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, genKey)
		if err != nil {
			return err
		}
		if current != generation {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(item.ShareID), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("cache shared whiteboard: %w", err)
	}
}

func (c *ShareCache) Invalidate(ctx context.Context, shareID string) error {
	if shareID == "" {
		return nil
	}
	genKey := c.genKey(shareID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, c.key(shareID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate shared whiteboard: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *ShareCache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis is reachable.
func (c *ShareCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
