// Package leaderboard caches computed discussion rankings in Redis.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alphabot-ai/threadfeed/internal/discussion"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrMiss is returned by Get when nothing is cached for the query.
	ErrMiss = errors.New("leaderboard not cached")
	// ErrStale is returned by Put when the discussion changed after the
	// ranking's version was read.
	ErrStale = errors.New("leaderboard version changed")
)

// versionTTL bounds how long an idle discussion's version counter lives.
const versionTTL = 24 * time.Hour

// Cache stores rankings per discussion in a Redis hash, one field per
// (scope, topN) query, so a single DEL drops every cached view. A per
// discussion version counter, bumped by Invalidate, keeps a ranking computed
// before a write from being stored after it.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache connects to redisURL and verifies the connection.
func NewCache(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewCacheWithClient(client, ttl), nil
}

// NewCacheWithClient wraps an existing client.
func NewCacheWithClient(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: "leaderboard:",
		ttl:    ttl,
	}
}

func (c *Cache) key(discussionID string) string {
	return c.prefix + discussionID
}

func (c *Cache) versionKey(discussionID string) string {
	return c.prefix + "version:" + discussionID
}

func field(agentsOnly bool, topN int) string {
	scope := "all"
	if agentsOnly {
		scope = "agents"
	}
	return scope + ":" + strconv.Itoa(topN)
}

// Get returns a cached ranking or ErrMiss.
func (c *Cache) Get(ctx context.Context, discussionID string, agentsOnly bool, topN int) ([]discussion.RankedParticipant, error) {
	data, err := c.client.HGet(ctx, c.key(discussionID), field(agentsOnly, topN)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	var ranked []discussion.RankedParticipant
	if err := json.Unmarshal(data, &ranked); err != nil {
		return nil, fmt.Errorf("unmarshal leaderboard: %w", err)
	}
	return ranked, nil
}

// Version returns the discussion's current cache version. Read it before
// computing a ranking and hand it to Put.
func (c *Cache) Version(ctx context.Context, discussionID string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(discussionID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get leaderboard version: %w", err)
	}
	return v, nil
}

// Put caches a ranking computed at version. It returns ErrStale, storing
// nothing, when Invalidate ran since that version was read. The discussion's
// whole hash expires after the TTL.
func (c *Cache) Put(ctx context.Context, discussionID string, version int64, agentsOnly bool, topN int, ranked []discussion.RankedParticipant) error {
	data, err := json.Marshal(ranked)
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}

	key, vkey := c.key(discussionID), c.versionKey(discussionID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != version {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field(agentsOnly, topN), data)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, vkey)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("save leaderboard: %w", err)
	}
}

// Invalidate drops every cached ranking of a discussion and bumps its
// version.
func (c *Cache) Invalidate(ctx context.Context, discussionID string) error {
	vkey := c.versionKey(discussionID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.key(discussionID))
		pipe.Incr(ctx, vkey)
		pipe.Expire(ctx, vkey, versionTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate leaderboard: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}
