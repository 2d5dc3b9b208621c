// Package cache holds the Redis-backed read caches of the marketplace.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	unreadKeyPrefix     = "notifications:unread:"
	generationKeyPrefix = "notifications:unread-gen:"
)

// errStaleCount aborts a write whose count predates the latest invalidation.
var errStaleCount = errors.New("unread count is stale")

// UnreadCounts caches the unread-notification badge count per user.
//
// Every invalidation bumps a per-user generation. A count read from the store
// is only written back when the generation is still the one observed by the
// cache miss, so a count computed before a concurrent Emit or MarkRead never
// lands in the cache.
type UnreadCounts struct {
	client *redis.Client
	ttl    time.Duration
}

// NewUnreadCounts creates a Redis-backed unread-count cache.
func NewUnreadCounts(client *redis.Client, ttl time.Duration) *UnreadCounts {
	return &UnreadCounts{client: client, ttl: ttl}
}

func unreadKey(userID string) string {
	return unreadKeyPrefix + userID
}

func generationKey(userID string) string {
	return generationKeyPrefix + userID
}

func parseGeneration(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	raw, _ := v.(string)
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse unread generation %q: %w", raw, err)
	}
	return gen, nil
}

// Get returns the cached count, whether it was present, and the generation to
// hand back to Set after a miss.
func (c *UnreadCounts) Get(ctx context.Context, userID string) (int, bool, int64, error) {
	vals, err := c.client.MGet(ctx, unreadKey(userID), generationKey(userID)).Result()
	if err != nil {
		return 0, false, 0, fmt.Errorf("redis get unread count: %w", err)
	}

	gen, err := parseGeneration(vals[1])
	if err != nil {
		return 0, false, 0, err
	}
	if vals[0] == nil {
		return 0, false, gen, nil
	}

	raw, _ := vals[0].(string)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, gen, fmt.Errorf("parse unread count %q: %w", raw, err)
	}
	return n, true, gen, nil
}

// Set stores a freshly computed count with the configured TTL, unless the
// user's counts were invalidated after generation was read. A skipped write is
// not an error.
func (c *UnreadCounts) Set(ctx context.Context, userID string, n int, generation int64) error {
	genKey := generationKey(userID)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		var current int64
		if err == nil {
			if current, err = parseGeneration(raw); err != nil {
				return err
			}
		}
		if current != generation {
			return errStaleCount
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, unreadKey(userID), n, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil, errors.Is(err, errStaleCount), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("redis set unread count: %w", err)
	}
}

// Invalidate drops the cached counts of the given users and starts a new
// generation for each of them.
func (c *UnreadCounts) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Incr(ctx, generationKey(id))
			pipe.Expire(ctx, generationKey(id), c.ttl+time.Hour)
			pipe.Del(ctx, unreadKey(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate unread counts: %w", err)
	}
	return nil
}
