package kitchen

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

// Projector builds the kitchen display queue from persisted item state. It never
// writes and keeps nothing between calls.
type Projector struct {
	orders interfaces.OrderRepository
	tables interfaces.TableRepository
	clock  interfaces.Clock
	logger logger.Logger
}

func NewProjector(orders interfaces.OrderRepository, tables interfaces.TableRepository, clock interfaces.Clock, logger logger.Logger) *Projector {
	if clock == nil {
		clock = interfaces.SystemClock{}
	}
	return &Projector{
		orders: orders,
		tables: tables,
		clock:  clock,
		logger: logger,
	}
}

// BuildQueue returns one entry per quantity unit of every New or Cooking item in
// branch, oldest item first. An empty station means every station; the
// Unassigned bucket is addressed by domain.UnassignedStation.
func (p *Projector) BuildQueue(ctx context.Context, branch, station string) ([]domain.QueueEntry, error) {
	items, err := p.orders.ListQueueItems(ctx, branch, station)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Item, items[j].Item
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if items[i].OrderID != items[j].OrderID {
			return items[i].OrderID < items[j].OrderID
		}
		return a.ID < b.ID
	})

	now := p.clock.Now()
	numbers := make(map[string]string)
	var queue []domain.QueueEntry

	for _, qi := range items {
		it := qi.Item
		if !it.Status.InKitchen() {
			continue
		}

		number, ok := numbers[qi.TableID]
		if !ok {
			number = p.tableNumber(ctx, qi.TableID)
			numbers[qi.TableID] = number
		}

		wait := int64(now.Sub(it.CreatedAt).Seconds())
		if wait < 0 {
			wait = 0
		}

		for unit := 1; unit <= it.Qty; unit++ {
			queue = append(queue, domain.QueueEntry{
				ItemID:      it.ID,
				Unit:        unit,
				OrderID:     qi.OrderID,
				ItemCode:    it.ItemCode,
				ItemName:    it.ItemName,
				Notes:       it.Notes,
				TableNumber: number,
				Station:     it.StationOrUnassigned(),
				Status:      it.Status,
				CreatedAt:   it.CreatedAt,
				TimeInQueue: wait,
			})
		}
	}

	return queue, nil
}

func (p *Projector) tableNumber(ctx context.Context, tableID string) string {
	if tableID == "" {
		return domain.UnknownTable
	}
	table, err := p.tables.Get(ctx, tableID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.logger.Error("table_lookup_failed", "Table lookup failed, showing Unknown", "", map[string]interface{}{
				"table_id": tableID,
			}, err)
		}
		return domain.UnknownTable
	}
	if table.Number == "" {
		return domain.UnknownTable
	}
	return table.Number
}
