package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koustreak/dbpool/internal/database"
	"github.com/koustreak/dbpool/internal/errs"
	"github.com/koustreak/dbpool/internal/logger"
)

// Driver is a PostgreSQL implementation of database.DB backed by pgxpool.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	pool *pgxpool.Pool
}

// New validates cfg's pool settings, builds a pgxpool from cfg and pings it
// with the validation query before returning.
func New(ctx context.Context, cfg *database.Config, log *logger.Logger) (*Driver, error) {
	if err := database.ValidatePool(cfg.Pool()); err != nil {
		return nil, err
	}

	poolCfg, err := buildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	log.Debugf("pgxpool keeps no idle ceiling; maxIdleConnections=%d is not applied",
		cfg.Pool().MaxIdleConnections())

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}

	d := &Driver{pool: pool}

	if err := d.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return d, nil
}

// Ping runs the validation query on a pooled connection. The query runs in
// the pool's acquire hook, so acquiring and releasing is enough.
func (d *Driver) Ping(ctx context.Context) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return mapError(err, "validation query failed")
	}
	conn.Release()
	return nil
}

// Close drains the connection pool. Call when the application shuts down.
func (d *Driver) Close() {
	d.pool.Close()
}

func (d *Driver) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgxRows{rows: rows}, nil
}

func (d *Driver) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgxRow{row: d.pool.QueryRow(ctx, sql, args...)}
}

func (d *Driver) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, "exec failed")
	}
	return tag.RowsAffected(), nil
}

// Stats reports pgxpool occupancy.
func (d *Driver) Stats() database.PoolStats {
	s := d.pool.Stat()
	return database.PoolStats{
		Driver:         database.DriverPostgres,
		Open:           int(s.TotalConns()),
		InUse:          int(s.AcquiredConns()),
		Idle:           int(s.IdleConns()),
		MaxConnections: int(s.MaxConns()),
	}
}

// Pool returns the underlying pgxpool (for advanced use)
func (d *Driver) Pool() *pgxpool.Pool {
	return d.pool
}

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return mapError(r.rows.Scan(dest...), "scan failed") }
func (r *pgxRows) Close()                 { r.rows.Close() }
func (r *pgxRows) Err() error             { return mapError(r.rows.Err(), "row iteration failed") }

type pgxRow struct {
	row pgx.Row
}

func (r *pgxRow) Scan(dest ...any) error { return mapError(r.row.Scan(dest...), "scan failed") }
