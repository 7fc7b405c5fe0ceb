package database

import "context"

// DB is the contract every pooled driver satisfies. Callers above this
// package hold a DB and never import the postgres or mysql packages directly.
type DB interface {
	// Ping runs the pool's validation query on a pooled connection.
	Ping(ctx context.Context) error

	// Close releases all resources held by the connection pool.
	Close()

	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Exec executes a statement and reports the number of affected rows.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// Stats reports the current pool occupancy.
	Stats() PoolStats
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}

// PoolStats is a driver-neutral snapshot of pool occupancy.
type PoolStats struct {
	Driver         Driver `json:"driver"`
	Open           int    `json:"open"`
	InUse          int    `json:"inUse"`
	Idle           int    `json:"idle"`
	MaxConnections int    `json:"maxConnections"`
}
