package services

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/regworks/accredit-sdk/pkg/serrors"
)

const uniqueViolation = "23505"

// translatePgError converts a unique-violation into a coded conflict so a
// racing duplicate insert surfaces the same way as the pre-checks.
func translatePgError(err error, code, format string, args ...any) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return serrors.NewConflict(code, format, args...)
	}
	return err
}
