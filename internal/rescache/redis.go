package rescache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is an optional shared-cache backend: multiple gateway
// instances behind a load balancer see each other's resolutions, at the
// cost of an extra network round trip per lookup and no read-your-writes
// guarantee across instances mid-TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache builds a RedisCache using client, namespacing every key
// under prefix so the resolution cache can share a Redis instance with
// other consumers without key collisions.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *RedisCache) redisKey(key string) string {
	return c.prefix + key
}

// encode and decode implement a tiny wire format for State so it fits in a
// single Redis string value: "<kind>\x00<url>".
const fieldSep = "\x00"

func encode(s State) string {
	return s.Kind.String() + fieldSep + s.URL
}

func decode(raw string) (State, error) {
	kind, url, found := strings.Cut(raw, fieldSep)
	if !found {
		return State{}, errors.New("rescache: malformed redis value")
	}
	switch kind {
	case KindMirror.String():
		return Mirror(url), nil
	case KindOrigin.String():
		return Origin(url), nil
	case KindAbsentFromMirror.String():
		return AbsentFromMirror(), nil
	case KindAbsentFromOrigin.String():
		return AbsentFromOrigin(), nil
	default:
		return State{}, errors.New("rescache: unknown state kind " + kind)
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (State, bool, error) {
	raw, err := c.client.Get(ctx, c.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	state, err := decode(raw)
	if err != nil {
		return State{}, false, err
	}
	return state, true, nil
}

func (c *RedisCache) Insert(ctx context.Context, key string, state State) error {
	return c.client.Set(ctx, c.redisKey(key), encode(state), c.ttl).Err()
}

func (c *RedisCache) Remove(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.redisKey(key)).Err()
}
