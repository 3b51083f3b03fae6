package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

// Resolver maps item groups to kitchen stations. Concurrent misses for the same
// key may scan twice; resolution is a pure function of station configuration so
// the cache converges either way.
type Resolver struct {
	stations interfaces.StationRepository
	cache    Cache
	ttl      time.Duration
	logger   logger.Logger
}

func NewResolver(stations interfaces.StationRepository, cache Cache, ttl time.Duration, logger logger.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		stations: stations,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
	}
}

// ResolveStation returns the name of the first active station, in creation
// order, that accepts itemGroup. It returns domain.ErrRoutingUnresolved when
// no station does.
func (r *Resolver) ResolveStation(ctx context.Context, branch, itemGroup string) (string, error) {
	if itemGroup == "" {
		return "", &domain.Error{Kind: domain.ErrRoutingUnresolved, Entity: domain.EntityMenu, Msg: "item has no item group"}
	}

	key := r.cache.GenerateKey(branch, itemGroup)
	station, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Error("routing_cache_read_failed", "Routing cache read failed, scanning stations", "", map[string]interface{}{
			"key": key,
		}, err)
	} else if ok {
		return station, nil
	}

	stations, err := r.stations.ListActive(ctx, branch)
	if err != nil {
		return "", fmt.Errorf("list active stations: %w", err)
	}

	for _, s := range stations {
		if !s.Accepts(itemGroup) {
			continue
		}
		if err := r.cache.Set(ctx, key, s.Name, r.ttl); err != nil {
			r.logger.Error("routing_cache_write_failed", "Routing cache write failed", "", map[string]interface{}{
				"key": key,
			}, err)
		}
		return s.Name, nil
	}

	return "", &domain.Error{
		Kind:   domain.ErrRoutingUnresolved,
		Entity: domain.EntityStation,
		ID:     itemGroup,
		Msg:    fmt.Sprintf("no active station in branch %s accepts this item group", branch),
	}
}

// RouteItems assigns a station to every item and groups them by station.
// Unrouted items land in the Unassigned bucket.
func (r *Resolver) RouteItems(ctx context.Context, branch string, items []*domain.OrderItem) (map[string][]*domain.OrderItem, error) {
	result := make(map[string][]*domain.OrderItem)
	resolved := make(map[string]string)

	for _, it := range items {
		station, seen := resolved[it.ItemGroup]
		if !seen {
			var err error
			station, err = r.ResolveStation(ctx, branch, it.ItemGroup)
			if err != nil {
				if !errors.Is(err, domain.ErrRoutingUnresolved) {
					return nil, err
				}
				r.logger.Debug("routing_unresolved", "Item routed to Unassigned", "", map[string]interface{}{
					"branch":     branch,
					"item_code":  it.ItemCode,
					"item_group": it.ItemGroup,
				})
				station = ""
			}
			resolved[it.ItemGroup] = station
		}
		it.Station = station
		key := it.StationOrUnassigned()
		result[key] = append(result[key], it)
	}
	return result, nil
}

// GroupByStation groups already routed items.
func GroupByStation(items []*domain.OrderItem) map[string][]*domain.OrderItem {
	result := make(map[string][]*domain.OrderItem)
	for _, it := range items {
		key := it.StationOrUnassigned()
		result[key] = append(result[key], it)
	}
	return result
}
