package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	UniqueViolationCode     = "23505"
	ForeignKeyViolationCode = "23503"
	CheckViolationCode      = "23514"
	NumericOverflowCode     = "22003"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is a unique constraint violation.
	ErrConflict = errors.New("already exists")
	// ErrForeignKey means a referenced row is missing or the row is still referenced.
	ErrForeignKey = errors.New("foreign key violation")
	ErrCheck      = errors.New("check constraint violation")
	ErrOutOfRange = errors.New("numeric value out of range")

	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOwnProduct        = errors.New("cannot order own product")
	ErrAmountTooLarge    = errors.New("order amount too large")
	// ErrStateChanged is returned by conditional updates that matched no row.
	ErrStateChanged     = errors.New("state changed")
	ErrNotOwner         = errors.New("not owner")
	ErrIdempotencyReuse = errors.New("idempotency key reused for a different order")
	ErrOverlap          = errors.New("overlaps an existing appointment")
)

func AsPgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// mapError turns constraint violations into sentinels and leaves everything else as is.
func mapError(err error) error {
	pe, ok := AsPgError(err)
	if !ok {
		return err
	}
	switch pe.Code {
	case UniqueViolationCode:
		return ErrConflict
	case ForeignKeyViolationCode:
		return ErrForeignKey
	case CheckViolationCode:
		return ErrCheck
	case NumericOverflowCode:
		return ErrOutOfRange
	}
	return err
}

// likePattern escapes s for use inside an ILIKE substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
