// Package bootstrap turns a database.Config into an open, validated pool.
//
// It resolves the driver, checks the pool settings, creates the target
// database when the config asks for it and then opens the pool through the
// backend registered for the driver.
package bootstrap

import (
	"context"

	"github.com/koustreak/dbpool/internal/database"
	"github.com/koustreak/dbpool/internal/database/mysql"
	"github.com/koustreak/dbpool/internal/database/postgres"
	"github.com/koustreak/dbpool/internal/errs"
	"github.com/koustreak/dbpool/internal/logger"
)

// Backend is what a driver package provides to the bootstrapper.
type Backend interface {
	// EnsureDatabase creates the target database if it is missing and
	// reports whether it did.
	EnsureDatabase(ctx context.Context, cfg *database.Config) (bool, error)

	// Open builds and validates the connection pool.
	Open(ctx context.Context, cfg *database.Config, log *logger.Logger) (database.DB, error)
}

// Bootstrapper opens pools for the drivers it knows about.
type Bootstrapper struct {
	log      *logger.Logger
	backends map[database.Driver]Backend
}

// New returns a Bootstrapper over the given backends.
func New(log *logger.Logger, backends map[database.Driver]Backend) *Bootstrapper {
	if log == nil {
		log = logger.Nop()
	}
	return &Bootstrapper{log: log, backends: backends}
}

// Default returns a Bootstrapper with the PostgreSQL and MySQL backends.
func Default(log *logger.Logger) *Bootstrapper {
	return New(log, map[database.Driver]Backend{
		database.DriverPostgres: postgres.Backend{},
		database.DriverMySQL:    mysql.Backend{},
	})
}

// Open resolves cfg's driver, validates the pool settings, creates the
// database when cfg.CreateDatabase() is set and opens the pool.
func (b *Bootstrapper) Open(ctx context.Context, cfg *database.Config) (database.DB, error) {
	driver, err := database.ParseDriver(string(cfg.Driver()))
	if err != nil {
		return nil, err
	}

	backend, ok := b.backends[driver]
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "no backend registered for driver %q", driver)
	}

	if err := database.ValidatePool(cfg.Pool()); err != nil {
		return nil, err
	}

	log := b.log.With().Str("driver", string(driver)).Logger()

	if cfg.CreateDatabase() {
		created, err := backend.EnsureDatabase(ctx, cfg)
		if err != nil {
			log.ErrorWith("failed to ensure database", err, nil)
			return nil, err
		}
		if created {
			log.Info("created database")
		} else {
			log.Debug("database already exists")
		}
	}

	db, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.ErrorWith("failed to open connection pool", err, nil)
		return nil, err
	}

	log.With().Object("database", cfg).Logger().Info("connection pool ready")
	return db, nil
}
