package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/scorecast/internal/config"
)

// Stores bundles the connections behind the prediction log.
type Stores struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// OpenStores connects to PostgreSQL and Redis. Nothing is left open on error.
func OpenStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stores, error) {
	pool, err := NewPostgresPool(ctx, cfg.DatabaseURL, cfg.MaxDBConns, log)
	if err != nil {
		return nil, err
	}

	rdb, err := NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Stores{Pool: pool, Redis: rdb}, nil
}

// Close releases both connections. Safe on a nil *Stores.
func (s *Stores) Close() {
	if s == nil {
		return
	}
	_ = s.Redis.Close()
	s.Pool.Close()
}
