package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Gimbo67/evokeessence-crypto-exchange-sub000/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectTimeout   = 10 * time.Second
	pingRetries      = 3
	pingRetryBackoff = 2 * time.Second
)

// DB wraps the pgx pool so callers never reach for pgxpool directly
type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConnection opens a pool against the configured Postgres instance and
// verifies reachability before returning. The ping is retried a few times so
// a service starting alongside its database does not flap.
func NewConnection(cfg *config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	for attempt := 1; ; attempt++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		if attempt >= pingRetries {
			pool.Close()
			return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempt, err)
		}
		logger.Warn("database ping failed, retrying",
			slog.Int("attempt", attempt), slog.Any("error", err))
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, fmt.Errorf("database connect timed out: %w", ctx.Err())
		case <-time.After(pingRetryBackoff):
		}
	}

	logger.Info("connected to database",
		slog.String("host", cfg.Host),
		slog.Int("pool_max", int(cfg.MaxConns)),
	)

	return &DB{Pool: pool, logger: logger}, nil
}

// HealthCheck pings the pool with a short deadline, for the /health endpoint
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

func (db *DB) Close() {
	db.logger.Info("closing database pool")
	db.Pool.Close()
}
