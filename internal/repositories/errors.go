package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"galapa/internal/common"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is implemented by both the pool and an open transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// classifyError maps driver errors onto the common error kinds.
// Errors that already carry a kind pass through untouched.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrConstraintViolation),
		errors.Is(err, common.ErrStorageUnavailable),
		errors.Is(err, common.ErrInvalidInput):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}

	// integrity_constraint_violation class
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%s: %w: %s", op, common.ErrConstraintViolation, pgErr.ConstraintName)
	}

	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageUnavailable, err)
}
