package repository

import (
	"context"
	"errors"
	"net"
	"strings"

	"stockledger/internal/apperr"
	"stockledger/internal/infra"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE codes the store layer reacts to.
const (
	sqlstateUniqueViolation     = "23505"
	sqlstateForeignKeyViolation = "23503"
	sqlstateCheckViolation      = "23514"
	sqlstateNotNullViolation    = "23502"
	sqlstateInvalidTextRepr     = "22P02"
	sqlstateInsufficientPriv    = "42501"
	sqlstateSerialization       = "40001"
	sqlstateDeadlock            = "40P01"
)

// classify maps driver and gorm errors onto the apperr taxonomy using the
// structured SQLSTATE, never the message text. Errors it cannot place are
// returned unchanged so the service boundary can surface them as Internal.
func classify(err error) error {
	if err == nil || apperr.IsClassified(err) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("record not found")
	}
	if errors.Is(err, infra.ErrCircuitOpen) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return apperr.Unavailable(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgError(pgErr, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return apperr.Unavailable(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.Unavailable(err)
	}
	if pgconn.SafeToRetry(err) {
		return apperr.Unavailable(err)
	}
	return err
}

func classifyPgError(pgErr *pgconn.PgError, err error) error {
	switch pgErr.Code {
	case sqlstateUniqueViolation:
		if strings.Contains(pgErr.ConstraintName, "sku") {
			return apperr.Wrap(apperr.KindConflict, err, "a product with this SKU already exists")
		}
		return apperr.Wrap(apperr.KindConflict, err, "duplicate value")
	case sqlstateForeignKeyViolation:
		return apperr.Wrap(apperr.KindNotFound, err, "referenced record does not exist")
	case sqlstateInsufficientPriv:
		return apperr.Wrap(apperr.KindForbidden, err, "operation not permitted")
	case sqlstateCheckViolation:
		return apperr.Wrap(apperr.KindInvalidArgument, err, "value violates constraint "+pgErr.ConstraintName)
	case sqlstateNotNullViolation:
		return apperr.Wrap(apperr.KindInvalidArgument, err, "missing required field "+pgErr.ColumnName)
	case sqlstateInvalidTextRepr:
		return apperr.Wrap(apperr.KindInvalidArgument, err, "malformed value")
	case sqlstateSerialization, sqlstateDeadlock:
		return apperr.Unavailable(err)
	}

	switch {
	case strings.HasPrefix(pgErr.Code, "22"): // data exception: out of range, too long
		return apperr.Wrap(apperr.KindInvalidArgument, err, "value out of range")
	case strings.HasPrefix(pgErr.Code, "08"), // connection exception
		strings.HasPrefix(pgErr.Code, "53"), // insufficient resources
		strings.HasPrefix(pgErr.Code, "57P"): // operator intervention / shutdown
		return apperr.Unavailable(err)
	}
	return err
}
