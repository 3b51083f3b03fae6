package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

// Service serves read-only views for floor staff.
type Service struct {
	orderRepo   interfaces.OrderRepository
	tableRepo   interfaces.TableRepository
	stationRepo interfaces.StationRepository
	logger      logger.Logger
}

func NewService(orderRepo interfaces.OrderRepository, tableRepo interfaces.TableRepository, stationRepo interfaces.StationRepository, logger logger.Logger) *Service {
	return &Service{
		orderRepo:   orderRepo,
		tableRepo:   tableRepo,
		stationRepo: stationRepo,
		logger:      logger,
	}
}

// TableOverview lists the tables of a branch with the progress of the order
// currently seated at each.
func (s *Service) TableOverview(ctx context.Context, branch string) ([]interfaces.TableOverview, error) {
	if branch == "" {
		return nil, domain.NewValidationError(domain.EntityBranch, "", "branch is required")
	}
	tables, err := s.tableRepo.ListByBranch(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	resp := make([]interfaces.TableOverview, 0, len(tables))
	for _, t := range tables {
		row := interfaces.TableOverview{
			TableID: t.ID,
			Number:  t.Number,
			Status:  t.Status,
		}
		if t.CurrentOrder != nil {
			order, err := s.orderRepo.Get(ctx, *t.CurrentOrder)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				s.logger.Error("table_dangling_reference", "Table references a missing order", "", map[string]interface{}{
					"table_id": t.ID,
					"order_id": *t.CurrentOrder,
				}, err)
			case err != nil:
				return nil, fmt.Errorf("get order of table %s: %w", t.ID, err)
			default:
				id := order.ID
				row.OrderID = &id
				row.Summary = order.Progress()
			}
		}
		resp = append(resp, row)
	}
	return resp, nil
}

func (s *Service) OrderHistory(ctx context.Context, orderID string) ([]domain.StatusLog, error) {
	if orderID == "" {
		return nil, domain.NewValidationError(domain.EntityOrder, "", "order id is required")
	}
	return s.orderRepo.GetStatusHistory(ctx, orderID)
}

// ListStations returns the active stations of a branch in creation order.
func (s *Service) ListStations(ctx context.Context, branch string) ([]*domain.KitchenStation, error) {
	if branch == "" {
		return nil, domain.NewValidationError(domain.EntityBranch, "", "branch is required")
	}
	return s.stationRepo.ListActive(ctx, branch)
}
