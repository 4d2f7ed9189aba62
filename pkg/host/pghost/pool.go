// Package pghost adapts a live PostgreSQL server to the host contract: the
// catalog and type lookups read pg_catalog, advisory locks are
// pg_advisory_xact_lock, and statements quack does not handle run on the
// server itself.
package pghost

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quack/pkg/config"
	"github.com/ajitpratap0/quack/pkg/errors"
)

// Querier is satisfied by *pgxpool.Pool, *pgxpool.Conn, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect creates a connection pool for cfg and checks that the server
// answers.
func Connect(ctx context.Context, cfg config.HostConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse connection string")
	}
	poolConfig.MaxConns = cfg.MaxConns
	if poolConfig.MaxConns <= 0 {
		poolConfig.MaxConns = 4
	}
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create connection pool")
	}

	var version string
	if err := pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to validate connection")
	}

	log.Info("connected to PostgreSQL",
		zap.String("version", version),
		zap.Int32("max_connections", poolConfig.MaxConns))
	return pool, nil
}
