package postgres

import (
	"context"
	"time"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

type accessRepository struct {
	db      DB
	timeout time.Duration
}

func NewAccessRepository(db DB, timeout time.Duration) interfaces.AccessRepository {
	return &accessRepository{db: db, timeout: timeout}
}

// A branch value of "*" grants every branch.
func (r *accessRepository) UserHasBranchAccess(ctx context.Context, actor, branch string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var ok bool
	if err := r.db.QueryRow(ctx, selectBranchAccessSQL, actor, branch).Scan(&ok); err != nil {
		return false, mapError("check branch access", domain.EntityBranch, branch, err)
	}
	return ok, nil
}
