package usercache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ttlSession bounds how long orphaned session state survives a crash; every
// write refreshes it.
const ttlSession = 24 * time.Hour

var ErrInvalidKey = errors.New("invalid cache key")

// Cache holds per-session scratch state (lobby selections, UI flags, relay
// cursors) in a redis hash per session. It is volatile by contract; nothing
// durable belongs here.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache { return &Cache{rdb: rdb} }

func (c *Cache) keySession(sessionID string) string {
	return "vc:session:" + strings.TrimSpace(sessionID)
}

func (c *Cache) keyUserIdx(userID int) string {
	return "vc:index:user:" + strconv.Itoa(userID)
}

// Set writes one field of the session hash and refreshes the TTL.
func (c *Cache) Set(ctx context.Context, sessionID, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	k := c.keySession(sessionID)
	if err := c.rdb.HSet(ctx, k, key, value).Err(); err != nil {
		return err
	}
	return c.rdb.Expire(ctx, k, ttlSession).Err()
}

// Get reads one field; a missing field or session is ("", false), not an error.
func (c *Cache) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	v, err := c.rdb.HGet(ctx, c.keySession(sessionID), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// GetAll returns the whole session hash; empty map for an unknown session.
func (c *Cache) GetAll(ctx context.Context, sessionID string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, c.keySession(sessionID)).Result()
}

// Delete drops the whole session state. Called on unregister; deleting an
// absent session is a no-op.
func (c *Cache) Delete(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, c.keySession(sessionID)).Err()
}

// BindUser indexes the live session id for a user so operator tooling can find
// it without scanning.
func (c *Cache) BindUser(ctx context.Context, userID int, sessionID string) error {
	k := c.keyUserIdx(userID)
	if err := c.rdb.Set(ctx, k, sessionID, ttlSession).Err(); err != nil {
		return err
	}
	return nil
}

// SessionByUser resolves the indexed session id, ("", false) when none.
func (c *Cache) SessionByUser(ctx context.Context, userID int) (string, bool, error) {
	v, err := c.rdb.Get(ctx, c.keyUserIdx(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// UnbindUser removes the user index entry.
func (c *Cache) UnbindUser(ctx context.Context, userID int) error {
	return c.rdb.Del(ctx, c.keyUserIdx(userID)).Err()
}
