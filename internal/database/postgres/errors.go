package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/dbpool/internal/errs"
)

// PostgreSQL SQLSTATE codes and classes the bootstrapper cares about.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	classConnectionException  = "08"
	classInvalidAuthorization = "28"
	codeInsufficientPrivilege = "42501"
	codeInvalidCatalogName    = "3D000"
	codeDuplicateDatabase     = "42P04"
	codeQueryCanceled         = "57014"
)

// mapError translates pgx / pgconn errors into *errs.Error.
// A nil err maps to a nil error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classify(pgErr.Code), fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	// TLS, network, DNS and auth handshake failures
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

func classify(code string) errs.ErrKind {
	switch {
	case code == codeQueryCanceled:
		return errs.ErrKindTimeout
	case code == codeInvalidCatalogName:
		return errs.ErrKindNotFound
	case code == codeInsufficientPrivilege:
		return errs.ErrKindPermissionDenied
	case len(code) >= 2 && code[:2] == classInvalidAuthorization:
		return errs.ErrKindPermissionDenied
	case len(code) >= 2 && code[:2] == classConnectionException:
		return errs.ErrKindConnectionFailed
	default:
		return errs.ErrKindQueryFailed
	}
}

func isDuplicateDatabase(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeDuplicateDatabase
}
