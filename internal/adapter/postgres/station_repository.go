package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

type stationRepository struct {
	db      DB
	timeout time.Duration
}

func NewStationRepository(db DB, timeout time.Duration) interfaces.StationRepository {
	return &stationRepository{db: db, timeout: timeout}
}

// ListActive keeps creation order; the router relies on it for first-match.
func (r *stationRepository) ListActive(ctx context.Context, branch string) ([]*domain.KitchenStation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectActiveStationsSQL, branch)
	if err != nil {
		return nil, mapError("list stations", domain.EntityBranch, branch, err)
	}
	defer rows.Close()

	var (
		out  []*domain.KitchenStation
		byID = make(map[string]*domain.KitchenStation)
	)
	for rows.Next() {
		var (
			s        domain.KitchenStation
			group    *string
			disabled *bool
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Branch, &s.Active, &s.CreatedAt, &group, &disabled); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		st, ok := byID[s.ID]
		if !ok {
			st = &s
			byID[s.ID] = st
			out = append(out, st)
		}
		if group != nil {
			st.ItemGroups = append(st.ItemGroups, domain.StationItemGroup{
				ItemGroup: *group,
				Disabled:  disabled != nil && *disabled,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list stations", domain.EntityBranch, branch, err)
	}
	return out, nil
}
