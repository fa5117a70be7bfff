package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/netcommerce-gateway/internal/cart"
	"github.com/noah-isme/netcommerce-gateway/internal/config"
	"github.com/noah-isme/netcommerce-gateway/internal/health"
	"github.com/noah-isme/netcommerce-gateway/internal/lock"
	"github.com/noah-isme/netcommerce-gateway/internal/obs"
	"github.com/noah-isme/netcommerce-gateway/internal/order"
	"github.com/noah-isme/netcommerce-gateway/internal/payment"
	"github.com/noah-isme/netcommerce-gateway/internal/ratelimit"
)

// Dependencies holds the stores and clients shared by the HTTP handlers.
type Dependencies struct {
	Orders  order.Store
	Carts   cart.Store
	Locker  payment.OrderLocker
	Limiter *limiter.Limiter
	Checks  []health.Check
}

// Connect opens Postgres and Redis, applies migrations when enabled and wires
// the stores. The returned close func releases both connections.
func Connect(ctx context.Context, cfg *config.Config, logger zerolog.Logger, redisMetrics bool) (*Dependencies, func(), error) {
	if cfg.RunMigrations {
		if err := order.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "netcommerce-gateway"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if redisMetrics {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	closeAll := func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
		pool.Close()
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	lim, err := ratelimit.NewRedisLimiter(redisClient, "ratelimit:checkout", cfg.CheckoutRateLimit)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("init rate limiter: %w", err)
	}

	deps := &Dependencies{
		Orders:  &order.PostgresStore{Pool: pool},
		Carts:   cart.Store{R: redisClient},
		Locker:  lock.Locker{R: redisClient, TTL: cfg.OrderLockTTL},
		Limiter: lim,
		Checks: []health.Check{
			{Name: "db", Timeout: cfg.Obs.ReadyDBTimeout, Ping: pool.Ping},
			{Name: "redis", Timeout: cfg.Obs.ReadyRedisTimeout, Ping: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
		},
	}
	return deps, closeAll, nil
}
