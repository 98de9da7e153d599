package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/contractdesk/internal/config"
	"github.com/smallbiznis/contractdesk/internal/sequence/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Provide selects the counter backend from CONTRACT_COUNTER_BACKEND.
func Provide(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) domain.Counter {
	if cfg.Counter.Backend != config.CounterBackendRedis {
		return NewSQLCounter()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Counter.RedisAddr,
		Password: cfg.Counter.RedisPass,
		DB:       cfg.Counter.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis counter backend unreachable", zap.String("addr", cfg.Counter.RedisAddr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	log.Info("using redis contract counter", zap.String("addr", cfg.Counter.RedisAddr))
	return NewRedisCounter(client)
}
