package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"prediction-arena/internal/config"
)

// defaultMaxConns caps the pool for a single-player client: one connection
// serves the series-end write, a couple more cover concurrent leaderboard
// reads.
const defaultMaxConns = 4

const pingTimeout = 5 * time.Second

// Open connects to the profile database and returns the repository over it.
// The connection is verified up front so a bad DSN surfaces at startup, not
// at the first series end.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*ProfileRepository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	poolConfig.MaxConns = defaultMaxConns
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create profile pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping profile database: %w", err)
	}

	return NewProfileRepository(pool), nil
}
