package mysql

import (
	"context"
	"database/sql"

	"github.com/koustreak/dbpool/internal/database"
	"github.com/koustreak/dbpool/internal/logger"
)

// Driver is a MySQL implementation of database.DB backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db              *sql.DB
	validationQuery string
}

// New validates cfg's pool settings, opens a database/sql pool for cfg,
// pings it with the validation query and warms up minIdleConnections
// connections before returning.
func New(ctx context.Context, cfg *database.Config, log *logger.Logger) (*Driver, error) {
	pool := cfg.Pool()
	if err := database.ValidatePool(pool); err != nil {
		return nil, err
	}

	mc, err := buildDriverConfig(cfg)
	if err != nil {
		return nil, err
	}

	db, err := openPool(mc, pool)
	if err != nil {
		return nil, err
	}

	d := &Driver{db: db, validationQuery: pool.ValidationQuery()}

	if err := d.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := warmUp(ctx, db, pool.MinIdleConnections(), d.validationQuery); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debugf("mysql pool warmed up with %d idle connections", pool.MinIdleConnections())

	return d, nil
}

// Ping runs the validation query on a pooled connection.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, d.validationQuery); err != nil {
		return mapError(err, "validation query failed")
	}
	return nil
}

func (d *Driver) Close() {
	_ = d.db.Close()
}

func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &mysqlRows{rows: rows}, nil
}

func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &mysqlRow{row: d.db.QueryRowContext(ctx, query, args...)}
}

func (d *Driver) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	n, err := res.RowsAffected()
	return n, mapError(err, "rows affected unavailable")
}

// Stats reports database/sql pool occupancy.
func (d *Driver) Stats() database.PoolStats {
	return statsOf(d.db.Stats())
}

func statsOf(s sql.DBStats) database.PoolStats {
	return database.PoolStats{
		Driver:         database.DriverMySQL,
		Open:           s.OpenConnections,
		InUse:          s.InUse,
		Idle:           s.Idle,
		MaxConnections: s.MaxOpenConnections,
	}
}

// SqlDB returns the underlying *sql.DB (for advanced use)
func (d *Driver) SqlDB() *sql.DB {
	return d.db
}

type mysqlRows struct {
	rows *sql.Rows
}

func (r *mysqlRows) Next() bool             { return r.rows.Next() }
func (r *mysqlRows) Scan(dest ...any) error { return mapError(r.rows.Scan(dest...), "scan failed") }
func (r *mysqlRows) Close()                 { _ = r.rows.Close() }
func (r *mysqlRows) Err() error             { return mapError(r.rows.Err(), "row iteration failed") }

type mysqlRow struct {
	row *sql.Row
}

func (r *mysqlRow) Scan(dest ...any) error { return mapError(r.row.Scan(dest...), "scan failed") }
