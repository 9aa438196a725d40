package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/quickdesk/internal/config"
)

const redisStartupProbe = 3 * time.Second

// Redis holds the client shared by token revocation and the category cache.
// Neither is required to serve requests, so an unreachable server at startup
// is logged rather than fatal.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the client and probes the server once.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	r := &Redis{Client: redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  redisStartupProbe,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})}

	ctx, cancel := context.WithTimeout(context.Background(), redisStartupProbe)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		logger.Warn("redis unreachable; revocation checks and category caching will fail until it recovers",
			zap.String("addr", cfg.Addr), zap.Error(err))
		return r
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return r
}

// Ping backs the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Close() {
	if r == nil || r.Client == nil {
		return
	}
	_ = r.Client.Close()
}
