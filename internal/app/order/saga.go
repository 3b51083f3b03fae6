package order

import (
	"context"
	"fmt"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

// step is one unit of a multi-entity write. Compensate undoes a successful Execute.
type step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// runSteps executes steps in order. On failure every completed step is
// compensated in reverse and the original error is returned.
func runSteps(ctx context.Context, log logger.Logger, requestID string, steps ...step) error {
	var done []step
	for _, st := range steps {
		if err := st.Execute(ctx); err != nil {
			if len(done) > 0 {
				log.Error("operation_rollback", fmt.Sprintf("Step %s failed, rolling back", st.Name()), requestID, map[string]interface{}{
					"failed_step": st.Name(),
				}, err)
			}
			rollback(ctx, log, requestID, done)
			return err
		}
		done = append(done, st)
	}
	return nil
}

func rollback(ctx context.Context, log logger.Logger, requestID string, steps []step) {
	for i := len(steps) - 1; i >= 0; i-- {
		st := steps[i]
		if err := st.Compensate(context.WithoutCancel(ctx)); err != nil {
			log.Error("compensation_failed", fmt.Sprintf("CRITICAL: failed to compensate step %s", st.Name()), requestID, nil, err)
		}
	}
}

// saveOrderStep persists the mutated order and restores the snapshot on rollback.
type saveOrderStep struct {
	orders interfaces.OrderRepository
	order  *domain.Order
	before *domain.Order
	actor  string
	clock  interfaces.Clock
}

func (s *saveOrderStep) Name() string { return "save_order" }

func (s *saveOrderStep) Execute(ctx context.Context) error {
	if err := s.orders.Save(ctx, s.order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

// Compensate writes the snapshot back at the version Execute produced, so a
// change committed by another writer in between is not overwritten.
func (s *saveOrderStep) Compensate(ctx context.Context) error {
	restore := s.before.Clone()
	restore.Version = s.order.Version
	restore.RecordNote(s.actor, s.clock.Now(), "reverted: table update failed")
	return s.orders.Save(ctx, restore)
}

// createOrderStep inserts a new order and deletes it on rollback.
type createOrderStep struct {
	orders interfaces.OrderRepository
	order  *domain.Order
}

func (s *createOrderStep) Name() string { return "create_order" }

func (s *createOrderStep) Execute(ctx context.Context) error {
	if err := s.orders.Create(ctx, s.order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *createOrderStep) Compensate(ctx context.Context) error {
	return s.orders.Delete(ctx, s.order.ID, s.order.Version)
}

// deleteOrderStep removes an order and re-creates the snapshot on rollback.
type deleteOrderStep struct {
	orders interfaces.OrderRepository
	before *domain.Order
}

func (s *deleteOrderStep) Name() string { return "delete_order" }

func (s *deleteOrderStep) Execute(ctx context.Context) error {
	if err := s.orders.Delete(ctx, s.before.ID, s.before.Version); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (s *deleteOrderStep) Compensate(ctx context.Context) error {
	return s.orders.Create(ctx, s.before.Clone())
}

// claimTableStep occupies the order's table.
type claimTableStep struct {
	tables  TableSync
	tableID string
	orderID string
}

func (s *claimTableStep) Name() string { return "claim_table" }

func (s *claimTableStep) Execute(ctx context.Context) error {
	if err := s.tables.Claim(ctx, s.tableID, s.orderID); err != nil {
		return fmt.Errorf("claim table: %w", err)
	}
	return nil
}

func (s *claimTableStep) Compensate(ctx context.Context) error {
	return s.tables.Release(ctx, s.tableID, s.orderID)
}

// releaseTableStep frees the order's table. It is always the last step, so it
// has nothing to compensate.
type releaseTableStep struct {
	tables  TableSync
	tableID string
	orderID string
}

func (s *releaseTableStep) Name() string { return "release_table" }

func (s *releaseTableStep) Execute(ctx context.Context) error {
	if err := s.tables.Release(ctx, s.tableID, s.orderID); err != nil {
		return fmt.Errorf("release table: %w", err)
	}
	return nil
}

func (s *releaseTableStep) Compensate(context.Context) error { return nil }
