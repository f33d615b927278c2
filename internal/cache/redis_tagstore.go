package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xxxsen/tribute/internal/cachetag"
)

// stamps only move forward so replays and duplicate calls are harmless
var invalidateScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'at')
if (not cur) or tonumber(cur) < tonumber(ARGV[1]) then
	redis.call('HSET', KEYS[1], 'at', ARGV[1], 'class', ARGV[2])
end
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// toMicros rounds up so a stored stamp never predates the real invalidation.
// Lua numbers are doubles, nanosecond stamps would lose precision.
func toMicros(nanos int64) int64 {
	return (nanos + 999) / 1000
}

// RedisTagStore shares tag states between instances.
type RedisTagStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

func NewRedisTagStore(client *redis.Client, prefix string, retention time.Duration) *RedisTagStore {
	if prefix == "" {
		prefix = "tribute:cachetag:"
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &RedisTagStore{client: client, prefix: prefix, retention: retention}
}

func (s *RedisTagStore) key(tag cachetag.Tag) string {
	return s.prefix + string(tag)
}

func (s *RedisTagStore) Invalidate(ctx context.Context, tags []cachetag.Tag, class cachetag.Freshness, at time.Time) error {
	stamp := strconv.FormatInt(toMicros(at.UnixNano()), 10)
	ttl := strconv.FormatInt(s.retention.Milliseconds(), 10)
	for _, tag := range tags {
		if err := invalidateScript.Run(ctx, s.client, []string{s.key(tag)}, stamp, class.String(), ttl).Err(); err != nil {
			return fmt.Errorf("invalidate tag %s: %w", tag, err)
		}
	}
	return nil
}

func (s *RedisTagStore) Lookup(ctx context.Context, tags []cachetag.Tag) (map[cachetag.Tag]TagState, error) {
	out := make(map[cachetag.Tag]TagState, len(tags))
	if len(tags) == 0 {
		return out, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(tags))
	for i, tag := range tags {
		cmds[i] = pipe.HMGet(ctx, s.key(tag), "at", "class")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("lookup tags: %w", err)
	}
	for i, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) != 2 || vals[0] == nil {
			continue
		}
		raw, _ := vals[0].(string)
		at, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		class, _ := vals[1].(string)
		out[tags[i]] = TagState{InvalidatedAt: at * 1000, Class: cachetag.ParseFreshness(class)}
	}
	return out, nil
}
