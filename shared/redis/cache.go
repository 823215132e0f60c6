package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ViewCache is a JSON-backed Redis store for read model projections of type T.
// A zero ttl keeps keys until they are deleted.
type ViewCache[T any] struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewViewCache[T any](client *redis.Client, ttl time.Duration, logger *zap.Logger) *ViewCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewCache[T]{client: client, ttl: ttl, logger: logger}
}

// Get returns (nil, false) on a miss or an undecodable value.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("view cache: undecodable value", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &v, true
}

// setIfNewer writes the value and its version unless the stored version is
// higher or the key has been retired.
var setIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current == 'retired' then
	return 0
end
if current and tonumber(current) > tonumber(ARGV[2]) then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

func versionKey(key string) string {
	return key + ":version"
}

// Set stores value under key unless a write with a higher version already
// landed, so concurrent writers finishing out of order keep the newest view.
// It reports whether the value was written. Failures are logged; the
// projection is advisory and never fails the command that produced it.
func (c *ViewCache[T]) Set(ctx context.Context, key string, version uint64, value *T) bool {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("view cache: marshal failed", zap.String("key", key), zap.Error(err))
		return false
	}
	written, err := setIfNewer.Run(ctx, c.client,
		[]string{key, versionKey(key)},
		data, version, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		c.logger.Warn("view cache: write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return written == 1
}

// Retire deletes the value under key and blocks later writes to it for
// tombstoneTTL, so a write still in flight cannot bring it back.
func (c *ViewCache[T]) Retire(ctx context.Context, key string, tombstoneTTL time.Duration) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.Set(ctx, versionKey(key), "retired", tombstoneTTL)
		return nil
	})
	if err != nil {
		c.logger.Warn("view cache: retire failed", zap.String("key", key), zap.Error(err))
	}
}
