package postgres

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koustreak/dbpool/internal/database"
	"github.com/koustreak/dbpool/internal/errs"
)

const (
	defaultMaxConnLifetime = 30 * time.Minute
	defaultMaxConnIdleTime = 5 * time.Minute
	defaultConnectTimeout  = 10 * time.Second
)

// buildPoolConfig turns a database.Config into a pgxpool config.
//
// The URL may be a postgres:// URL or a keyword/value DSN. User and password
// from cfg replace any credentials embedded in the URL when they are set.
// Every checkout runs the validation query (see validateOnAcquire).
func buildPoolConfig(cfg *database.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid postgres url", err)
	}

	if cfg.User() != "" {
		poolCfg.ConnConfig.User = cfg.User()
	}
	if cfg.Password() != "" {
		poolCfg.ConnConfig.Password = cfg.Password()
	}
	if poolCfg.ConnConfig.ConnectTimeout == 0 {
		poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout
	}

	pool := cfg.Pool()
	poolCfg.MaxConns = toInt32(pool.MaxConnections())
	poolCfg.MinIdleConns = toInt32(pool.MinIdleConnections())
	poolCfg.MaxConnLifetime = defaultMaxConnLifetime
	poolCfg.MaxConnIdleTime = defaultMaxConnIdleTime
	poolCfg.PrepareConn = validateOnAcquire(pool.ValidationQuery())

	return poolCfg, nil
}

// validateOnAcquire runs query on a connection before the pool hands it out.
// A connection that fails for transport reasons is destroyed and the acquire
// retried on another one. An error reported by the server means the query
// itself is wrong, so the acquire fails with it instead of cycling through
// the pool.
func validateOnAcquire(query string) func(context.Context, *pgx.Conn) (bool, error) {
	return func(ctx context.Context, conn *pgx.Conn) (bool, error) {
		if _, err := conn.Exec(ctx, query); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				return false, err
			}
			return false, nil
		}
		return true, nil
	}
}

func toInt32(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}
