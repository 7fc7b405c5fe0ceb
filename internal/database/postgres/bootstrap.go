package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/koustreak/dbpool/internal/database"
	"github.com/koustreak/dbpool/internal/errs"
	"github.com/koustreak/dbpool/internal/logger"
)

// maintenanceDatabase is the database every PostgreSQL server ships with.
// CREATE DATABASE is issued from a session connected to it.
const maintenanceDatabase = "postgres"

// EnsureDatabase creates the database named in cfg's URL when it does not
// exist. It reports whether it created the database. Losing a creation race
// to another process is not an error.
func EnsureDatabase(ctx context.Context, cfg *database.Config) (bool, error) {
	poolCfg, err := buildPoolConfig(cfg)
	if err != nil {
		return false, err
	}

	target := poolCfg.ConnConfig.Database
	if target == "" {
		return false, errs.New(errs.ErrKindInvalidInput, "postgres url does not name a database")
	}
	if target == maintenanceDatabase {
		return false, nil
	}

	admin := poolCfg.ConnConfig.Copy()
	admin.Database = maintenanceDatabase

	conn, err := pgx.ConnectConfig(ctx, admin)
	if err != nil {
		return false, mapError(err, "failed to connect to maintenance database")
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	var one int
	err = conn.QueryRow(ctx, `SELECT 1 FROM pg_database WHERE datname = $1`, target).Scan(&one)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return false, mapError(err, "failed to look up database")
	}

	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{target}.Sanitize()); err != nil {
		if isDuplicateDatabase(err) {
			return false, nil
		}
		return false, mapError(err, "failed to create database")
	}
	return true, nil
}

// Backend plugs PostgreSQL into the bootstrapper.
type Backend struct{}

func (Backend) EnsureDatabase(ctx context.Context, cfg *database.Config) (bool, error) {
	return EnsureDatabase(ctx, cfg)
}

func (Backend) Open(ctx context.Context, cfg *database.Config, log *logger.Logger) (database.DB, error) {
	d, err := New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return d, nil
}
