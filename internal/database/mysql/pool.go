package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/koustreak/dbpool/internal/database"
	"github.com/koustreak/dbpool/internal/errs"
)

const (
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
	defaultDialTimeout     = 10 * time.Second
)

// buildDriverConfig parses cfg's URL as a go-sql-driver DSN
// (user:pass@tcp(host:3306)/dbname?params). User and password from cfg
// replace the DSN's credentials when they are set.
func buildDriverConfig(cfg *database.Config) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(cfg.URL())
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql dsn", err)
	}

	if cfg.User() != "" {
		mc.User = cfg.User()
	}
	if cfg.Password() != "" {
		mc.Passwd = cfg.Password()
	}
	if mc.Timeout == 0 {
		mc.Timeout = defaultDialTimeout
	}
	mc.ParseTime = true

	return mc, nil
}

// openPool builds a *sql.DB for mc and applies the pool limits.
func openPool(mc *mysql.Config, pool database.PoolSettings) (*sql.DB, error) {
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid mysql dsn", err)
	}

	db := sql.OpenDB(connector)
	applyPoolSettings(db, pool)
	return db, nil
}

func applyPoolSettings(db *sql.DB, pool database.PoolSettings) {
	db.SetMaxOpenConns(pool.MaxConnections())
	db.SetMaxIdleConns(pool.MaxIdleConnections())
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
}

// warmUp opens n connections, validates each with query and hands them back
// to the idle set. database/sql has no idle floor of its own, so this is how
// minIdleConnections takes effect at startup.
func warmUp(ctx context.Context, db *sql.DB, n int, query string) error {
	conns := make([]*sql.Conn, 0, n)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()

	for i := 0; i < n; i++ {
		c, err := db.Conn(ctx)
		if err != nil {
			return mapError(err, "failed to open idle connection")
		}
		conns = append(conns, c)

		if _, err := c.ExecContext(ctx, query); err != nil {
			return mapError(err, "validation query failed")
		}
	}
	return nil
}
