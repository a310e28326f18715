package repo

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/novahub/internal/discount"
)

var (
	// ErrConflict is returned when a primary key is already taken.
	ErrConflict = errors.New("record already exists")
	// ErrRuleNotFound aliases the discount package sentinel.
	ErrRuleNotFound = discount.ErrNotFound
)

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
