package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

type catalogRepository struct {
	db      DB
	timeout time.Duration
}

func NewCatalogRepository(db DB, timeout time.Duration) interfaces.CatalogRepository {
	return &catalogRepository{db: db, timeout: timeout}
}

func (r *catalogRepository) GetItem(ctx context.Context, code string) (*domain.MenuItem, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	m, err := scanMenuItem(r.db.QueryRow(ctx, selectMenuItemSQL, code))
	if err != nil {
		return nil, mapError("get menu item", domain.EntityMenu, code, err)
	}
	if err := r.loadAttributes(ctx, []*domain.MenuItem{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *catalogRepository) ListVariants(ctx context.Context, templateCode string) ([]*domain.MenuItem, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectVariantsSQL, templateCode)
	if err != nil {
		return nil, mapError("list variants", domain.EntityMenu, templateCode, err)
	}
	defer rows.Close()

	var out []*domain.MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list variants", domain.EntityMenu, templateCode, err)
	}
	if err := r.loadAttributes(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *catalogRepository) loadAttributes(ctx context.Context, items []*domain.MenuItem) error {
	if len(items) == 0 {
		return nil
	}
	byCode := make(map[string]*domain.MenuItem, len(items))
	codes := make([]string, 0, len(items))
	for _, m := range items {
		byCode[m.Code] = m
		codes = append(codes, m.Code)
	}

	rows, err := r.db.Query(ctx, selectVariantAttributesSQL, codes)
	if err != nil {
		return mapError("load variant attributes", domain.EntityMenu, codes[0], err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		var a domain.VariantAttribute
		if err := rows.Scan(&code, &a.Attribute, &a.FieldName, &a.Value); err != nil {
			return fmt.Errorf("scan variant attribute: %w", err)
		}
		if m, ok := byCode[code]; ok {
			m.Attributes = append(m.Attributes, a)
		}
	}
	if err := rows.Err(); err != nil {
		return mapError("load variant attributes", domain.EntityMenu, codes[0], err)
	}
	return nil
}

func scanMenuItem(row Row) (*domain.MenuItem, error) {
	var (
		m    domain.MenuItem
		rate string
	)
	err := row.Scan(&m.Code, &m.Name, &m.ItemGroup, &rate, &m.HasVariants, &m.VariantOf, &m.MinQty, &m.MaxQty, &m.Disabled)
	if err != nil {
		return nil, err
	}
	if m.Rate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("bad rate %q for item %s: %w", rate, m.Code, err)
	}
	return &m, nil
}
