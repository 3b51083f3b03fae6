package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
)

const uniqueViolation = "23505"

// mapError turns a driver error into one of the domain kinds.
// A missing row becomes NotFound for entity/id; anything else is Unavailable.
func mapError(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewNotFoundError(entity, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.NewConflictError(entity, id, "%s already exists", entity)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: store timed out: %w", op, domain.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUnavailable, err)
}
