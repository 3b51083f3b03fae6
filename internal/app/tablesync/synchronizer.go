package tablesync

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

// Synchronizer is the only writer of table occupancy. Every write is
// conditional on the holder it read, so callers in other processes cannot
// overwrite each other; a lost race is re-read and decided again.
type Synchronizer struct {
	tables interfaces.TableRepository
	orders interfaces.OrderRepository
	logger logger.Logger
}

// maxAttempts bounds re-reads after a concurrent table write.
const maxAttempts = 3

func NewSynchronizer(tables interfaces.TableRepository, orders interfaces.OrderRepository, logger logger.Logger) *Synchronizer {
	return &Synchronizer{
		tables: tables,
		orders: orders,
		logger: logger,
	}
}

// Claim marks the table InProgress for orderID. Re-claiming by the same order is
// a no-op. A reference to another order that is still open is a conflict; a
// reference to a closed or missing order is stale and gets overwritten.
func (s *Synchronizer) Claim(ctx context.Context, tableID, orderID string) error {
	return s.retry(ctx, "claim", tableID, orderID, s.claim)
}

// Release frees the table if it is held by orderID. A table that is already
// free or held by another order is left alone.
func (s *Synchronizer) Release(ctx context.Context, tableID, orderID string) error {
	return s.retry(ctx, "release", tableID, orderID, s.release)
}

func (s *Synchronizer) retry(ctx context.Context, op, tableID, orderID string, fn func(context.Context, string, string) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx, tableID, orderID)
		if !errors.Is(err, domain.ErrStaleWrite) {
			return err
		}
		s.logger.Debug("table_write_retry", "Table changed concurrently, re-reading", "", map[string]interface{}{
			"table_id": tableID,
			"order_id": orderID,
			"op":       op,
			"attempt":  attempt,
		})
	}
	return err
}

func (s *Synchronizer) claim(ctx context.Context, tableID, orderID string) error {
	table, err := s.tables.Get(ctx, tableID)
	if err != nil {
		return fmt.Errorf("get table: %w", err)
	}
	if table.HeldBy(orderID) && table.Status == domain.TableInProgress {
		return nil
	}
	expected := table.CurrentOrder

	if table.CurrentOrder != nil && !table.HeldBy(orderID) {
		holder := *table.CurrentOrder
		open, err := s.orderIsOpen(ctx, holder)
		if err != nil {
			return err
		}
		if open {
			return domain.NewConflictError(domain.EntityTable, tableID, "table is held by open order %s", holder)
		}
		s.logger.Info("table_stale_reference", "Overwriting stale table reference", "", map[string]interface{}{
			"table_id":   tableID,
			"stale_ref":  holder,
			"new_holder": orderID,
		})
	}

	table.Claim(orderID)
	if err := s.tables.Save(ctx, table, expected); err != nil {
		return fmt.Errorf("save table: %w", err)
	}

	s.logger.Debug("table_claimed", "Table claimed", "", map[string]interface{}{
		"table_id": tableID,
		"order_id": orderID,
	})
	return nil
}

func (s *Synchronizer) release(ctx context.Context, tableID, orderID string) error {
	table, err := s.tables.Get(ctx, tableID)
	if err != nil {
		return fmt.Errorf("get table: %w", err)
	}

	if table.CurrentOrder != nil && !table.HeldBy(orderID) {
		s.logger.Debug("table_release_skipped", "Table held by another order", "", map[string]interface{}{
			"table_id": tableID,
			"order_id": orderID,
			"holder":   *table.CurrentOrder,
		})
		return nil
	}
	if table.Status == domain.TableAvailable && table.CurrentOrder == nil {
		return nil
	}
	expected := table.CurrentOrder

	table.Release()
	if err := s.tables.Save(ctx, table, expected); err != nil {
		return fmt.Errorf("save table: %w", err)
	}

	s.logger.Debug("table_released", "Table released", "", map[string]interface{}{
		"table_id": tableID,
		"order_id": orderID,
	})
	return nil
}

func (s *Synchronizer) orderIsOpen(ctx context.Context, orderID string) (bool, error) {
	order, err := s.orders.Get(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get holding order: %w", err)
	}
	return order.IsOpen(), nil
}
