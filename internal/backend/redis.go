package backend

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// defaultKeyPrefix namespaces all cache keys in Redis to avoid collisions.
	defaultKeyPrefix = "l2cache:"

	// scanBatch is the COUNT hint for SCAN during region/full eviction.
	scanBatch = 512

	opTimeout   = 2 * time.Second
	pingTimeout = 1 * time.Second
)

func init() {
	Register("redis", newRedisBackend)
}

// redisBackend applies evictions to a shared Redis/Valkey store.
//
// Keys follow "{prefix}{region}/{type}#{id}", so point eviction is a single
// DEL and region eviction is a SCAN over "{prefix}{region}/*" with batched
// deletes. The constructor does not require the server to be reachable:
// a backend that starts during a Redis outage must still register and become
// active once Available() starts reporting true.
type redisBackend struct {
	client   *redis.Client
	prefix   string
	priority int
	logger   zerolog.Logger
}

func newRedisBackend(cfg Config) (Backend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	b := &redisBackend{
		client:   client,
		prefix:   prefix,
		priority: cfg.Priority,
		logger:   cfg.Logger,
	}

	// Probe once so a misconfigured address shows up in the logs at startup
	// instead of at the first commit.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		b.logger.Warn().Err(err).Str("address", cfg.RedisAddress).
			Msg("Redis backend unreachable at startup, will retry on demand")
	}

	return b, nil
}

func (r *redisBackend) Name() string  { return "redis" }
func (r *redisBackend) Priority() int { return r.priority }

func (r *redisBackend) Evict(ctx context.Context, region, entityType, entityID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.client.Del(ctx, r.prefix+EntryKey(region, entityType, entityID)).Err()
}

func (r *redisBackend) EvictRegion(ctx context.Context, region string) error {
	return r.deleteByPattern(ctx, r.prefix+RegionPrefix(region)+"*")
}

func (r *redisBackend) Clear(ctx context.Context) error {
	return r.deleteByPattern(ctx, r.prefix+"*")
}

// deleteByPattern walks the keyspace with SCAN and deletes matches in batches.
// SCAN guarantees every key present for the whole iteration is returned, which
// is exactly the invalidation contract: entries cached before the eviction are
// removed, concurrent repopulation is allowed to survive.
func (r *redisBackend) deleteByPattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (r *redisBackend) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	return r.client.Ping(ctx).Err() == nil
}

func (r *redisBackend) Close() error {
	return r.client.Close()
}
