package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
)

// Postgres SQLSTATEs that mean "gave up waiting", all safe to retry.
const (
	pgLockNotAvailable = "55P03"
	pgQueryCanceled    = "57014"
	pgDeadlockDetected = "40P01"
	pgSerialization    = "40001"
	pgUniqueViolation  = "23505"
)

// IsUniqueViolation reports whether the provided error references a unique
// violation. When constraintName is provided, the helper looks for the
// constraint in the Postgres error or the error text.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsTimeout reports whether err means a lock or deadline wait was abandoned.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgQueryCanceled, pgDeadlockDetected, pgSerialization:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "canceling statement due to lock timeout")
}

// Classify converts lock waits and expired deadlines into TIMEOUT errors and
// leaves typed domain errors untouched.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil && !IsTimeout(err) {
		return err
	}
	if IsTimeout(err) || (ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		if pkgerrors.IsCode(err, pkgerrors.CodeTimeout) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "lock wait exceeded")
	}
	return err
}
