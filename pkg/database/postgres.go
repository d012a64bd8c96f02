package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns        = 25
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

// DB is the application's pgx pool. Request and task code reaches it through a Scope.
type DB struct {
	*pgxpool.Pool
}

// Config describes the pool. Zero values fall back to the package defaults.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string
	// StatementTimeout bounds every statement on pooled connections. Zero leaves the server default.
	StatementTimeout time.Duration
}

func (c *Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pc.MaxConns = orDefault(c.MaxConnections, defaultMaxConns)
	pc.MaxConnLifetime = orDefault(c.MaxConnLifetime, defaultMaxConnLifetime)
	pc.MaxConnIdleTime = orDefault(c.MaxConnIdleTime, defaultMaxConnIdleTime)

	params := pc.ConnConfig.RuntimeParams
	if c.ApplicationName != "" {
		params["application_name"] = c.ApplicationName
	}
	if c.StatementTimeout > 0 {
		params["statement_timeout"] = fmt.Sprintf("%d", c.StatementTimeout.Milliseconds())
	}
	return pc, nil
}

// NewConnection opens the pool and pings it once so a bad URL fails at startup.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close releases every pooled connection.
func (db *DB) Close() {
	db.Pool.Close()
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
