package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/koustreak/dbpool/internal/database"
	"github.com/koustreak/dbpool/internal/errs"
	"github.com/koustreak/dbpool/internal/logger"
)

// EnsureDatabase creates the schema named in cfg's DSN when it does not
// exist, connecting to the server without selecting a database. It reports
// whether it created the schema.
func EnsureDatabase(ctx context.Context, cfg *database.Config) (bool, error) {
	mc, err := buildDriverConfig(cfg)
	if err != nil {
		return false, err
	}

	target := mc.DBName
	if target == "" {
		return false, errs.New(errs.ErrKindInvalidInput, "mysql dsn does not name a database")
	}

	admin := mc.Clone()
	admin.DBName = ""

	db, err := openPool(admin, database.NewPoolSettings(
		database.WithMinIdleConnections(0),
		database.WithMaxIdleConnections(1),
		database.WithMaxConnections(1),
	))
	if err != nil {
		return false, err
	}
	defer func() { _ = db.Close() }()

	var one int
	err = db.QueryRowContext(ctx,
		`SELECT 1 FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?`, target).Scan(&one)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, mapError(err, "failed to look up database")
	}

	if _, err := db.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+quoteIdent(target)); err != nil {
		return false, mapError(err, "failed to create database")
	}
	return true, nil
}

// quoteIdent wraps a MySQL identifier in back-quotes.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Backend plugs MySQL into the bootstrapper.
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
