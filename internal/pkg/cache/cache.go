package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/internal/pkg/config"
)

// New creates the shared Redis client. A failed ping is logged, not fatal:
// limiter calls fail open until the server is reachable.
func New(ctx context.Context, cfg config.CacheConfig, lg *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		lg.Warn("could not connect to redis", zap.String("addr", cfg.Addr()), zap.Error(err))
	} else {
		lg.Info("connected to redis", zap.String("addr", cfg.Addr()))
	}
	return client
}
