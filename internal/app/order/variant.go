package order

import (
	"context"
	"fmt"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
)

// ResolveVariant maps a template and attribute values to a concrete item code.
// A plain item with no attributes resolves to itself.
func (s *Service) ResolveVariant(ctx context.Context, templateCode string, attrs map[string]string) (string, error) {
	item, err := s.resolveMenuItem(ctx, templateCode, attrs)
	if err != nil {
		return "", err
	}
	return item.Code, nil
}

func (s *Service) resolveMenuItem(ctx context.Context, code string, attrs map[string]string) (*domain.MenuItem, error) {
	if code == "" {
		return nil, domain.NewValidationError(domain.EntityMenu, "", "item code is required")
	}
	item, err := s.catalog.GetItem(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", code, err)
	}

	if !item.IsTemplate() {
		if len(attrs) == 0 || item.MatchesAttributes(attrs) {
			return item, nil
		}
		return nil, &domain.Error{Kind: domain.ErrNotFound, Entity: domain.EntityMenu, ID: code, Msg: "item has no variant with the requested attributes"}
	}
	if len(attrs) == 0 {
		return nil, domain.NewValidationError(domain.EntityMenu, code, "item is a template, attributes are required")
	}

	variants, err := s.catalog.ListVariants(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("list variants of %s: %w", code, err)
	}
	for _, v := range variants {
		if v.Disabled {
			continue
		}
		if v.MatchesAttributes(attrs) {
			return v, nil
		}
	}
	return nil, &domain.Error{Kind: domain.ErrNotFound, Entity: domain.EntityMenu, ID: code, Msg: fmt.Sprintf("no variant matches %v", attrs)}
}
