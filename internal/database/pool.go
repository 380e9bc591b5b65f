// Package database holds the PostgreSQL side of the pipeline: connection
// pools, the raw table source, the replace-relation destination, run history
// and the history schema migrations.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions configures a connection pool.
type PoolOptions struct {
	MaxConns        int
	MaxConnLifetime time.Duration
}

// Connect parses url, applies opts, opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dbURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to database", "name", DatabaseName(dbURL))
	return pool, nil
}

// DatabaseName extracts the database name from a connection URL for logging.
// It returns an empty string when the URL cannot be parsed.
func DatabaseName(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
