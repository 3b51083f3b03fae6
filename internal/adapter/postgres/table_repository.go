package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

type tableRepository struct {
	db      DB
	timeout time.Duration
}

func NewTableRepository(db DB, timeout time.Duration) interfaces.TableRepository {
	return &tableRepository{db: db, timeout: timeout}
}

func (r *tableRepository) Get(ctx context.Context, id string) (*domain.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	t, err := scanTable(r.db.QueryRow(ctx, selectTableSQL, id))
	if err != nil {
		return nil, mapError("get table", domain.EntityTable, id, err)
	}
	return t, nil
}

// Save persists only the occupancy columns. The rest of the row belongs to floor setup.
func (r *tableRepository) Save(ctx context.Context, table *domain.Table, expected *string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if !table.Consistent() {
		return domain.NewValidationError(domain.EntityTable, table.ID, "status %s does not match current order", table.Status)
	}
	tag, err := r.db.Exec(ctx, updateTableSQL, table.ID, string(table.Status), table.CurrentOrder, expected)
	if err != nil {
		return mapError("save table", domain.EntityTable, table.ID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, tableExistsSQL, table.ID).Scan(&exists); err != nil {
		return mapError("check table", domain.EntityTable, table.ID, err)
	}
	if !exists {
		return domain.NewNotFoundError(domain.EntityTable, table.ID)
	}
	return domain.NewStaleWriteError(domain.EntityTable, table.ID)
}

func (r *tableRepository) ListByBranch(ctx context.Context, branch string) ([]*domain.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectTablesByBranchSQL, branch)
	if err != nil {
		return nil, mapError("list tables", domain.EntityBranch, branch, err)
	}
	defer rows.Close()

	var out []*domain.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list tables", domain.EntityBranch, branch, err)
	}
	return out, nil
}

func scanTable(row Row) (*domain.Table, error) {
	var (
		t      domain.Table
		status string
	)
	if err := row.Scan(&t.ID, &t.Number, &t.Branch, &t.Seats, &t.Active, &status, &t.CurrentOrder); err != nil {
		return nil, err
	}
	t.Status = domain.TableStatus(status)
	return &t, nil
}
