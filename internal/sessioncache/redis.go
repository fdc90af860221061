package sessioncache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis stores values in Redis with a sliding TTL matching the session
// lifetime. A Redis with a nil client is a permanent miss.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis connects to redisURL. If the URL is empty or the server does not
// answer, it returns a Redis whose operations are no-ops.
func NewRedis(redisURL string, ttl time.Duration, log zerolog.Logger) *Redis {
	if redisURL == "" {
		log.Info().Msg("redis: no URL configured, session cache disabled")
		return &Redis{ttl: ttl}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis: invalid URL, session cache disabled")
		return &Redis{ttl: ttl}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis: connection failed, session cache disabled")
		_ = rdb.Close()
		return &Redis{ttl: ttl}
	}

	log.Info().Msg("redis: connected, session cache enabled")
	return &Redis{rdb: rdb, ttl: ttl}
}

// NewRedisClient wraps an existing client.
func NewRedisClient(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Enabled() bool {
	return r.rdb != nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	if r.rdb == nil {
		return "", false, nil
	}
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Set(ctx, key, value, r.ttl).Err()
}

func (r *Redis) Clear(ctx context.Context, key string) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Del(ctx, key).Err()
}

// Health pings Redis. A disabled cache reports healthy.
func (r *Redis) Health(ctx context.Context) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
