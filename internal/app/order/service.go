package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/app/routing"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

// TableSync claims and releases tables on behalf of orders.
type TableSync interface {
	Claim(ctx context.Context, tableID, orderID string) error
	Release(ctx context.Context, tableID, orderID string) error
}

type StationRouter interface {
	RouteItems(ctx context.Context, branch string, items []*domain.OrderItem) (map[string][]*domain.OrderItem, error)
}

type QueueBuilder interface {
	BuildQueue(ctx context.Context, branch, station string) ([]domain.QueueEntry, error)
}

type Params struct {
	Orders    interfaces.OrderRepository
	Tables    interfaces.TableRepository
	Catalog   interfaces.CatalogRepository
	Access    interfaces.AccessRepository
	Router    StationRouter
	TableSync TableSync
	Queue     QueueBuilder
	Publisher interfaces.MessagePublisher
	Clock     interfaces.Clock
	Logger    logger.Logger
	NewID     func() string
}

// Service is the entry point for every order mutation. Writes to one order are
// serialized in-process by a keyed mutex and across processes by the store's
// version check: a write that lost to another process is reloaded and
// re-validated from scratch.
type Service struct {
	orders    interfaces.OrderRepository
	tables    interfaces.TableRepository
	catalog   interfaces.CatalogRepository
	access    interfaces.AccessRepository
	router    StationRouter
	tableSync TableSync
	queue     QueueBuilder
	publisher interfaces.MessagePublisher
	clock     interfaces.Clock
	logger    logger.Logger
	newID     func() string
	locks     *keyedMutex
}

func NewService(p Params) *Service {
	s := &Service{
		orders:    p.Orders,
		tables:    p.Tables,
		catalog:   p.Catalog,
		access:    p.Access,
		router:    p.Router,
		tableSync: p.TableSync,
		queue:     p.Queue,
		publisher: p.Publisher,
		clock:     p.Clock,
		logger:    p.Logger,
		newID:     p.NewID,
		locks:     newKeyedMutex(),
	}
	if s.publisher == nil {
		s.publisher = interfaces.NopPublisher{}
	}
	if s.clock == nil {
		s.clock = interfaces.SystemClock{}
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *Service) CreateOrder(ctx context.Context, cmd interfaces.CreateOrderCommand) (*domain.Order, error) {
	if cmd.TableID == "" {
		return nil, domain.NewValidationError(domain.EntityOrder, "", "table is required")
	}
	if len(cmd.Items) == 0 {
		return nil, domain.NewValidationError(domain.EntityOrder, "", "at least one item is required")
	}

	table, err := s.tables.Get(ctx, cmd.TableID)
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}
	if !table.Active {
		return nil, domain.NewValidationError(domain.EntityTable, table.ID, "table is not active")
	}
	if err := s.checkAccess(ctx, cmd.Actor, table.Branch); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	items, err := s.buildItems(ctx, table.Branch, cmd.Items, cmd.Actor, now)
	if err != nil {
		return nil, err
	}

	id, err := s.orders.NextOrderID(ctx, table.Branch)
	if err != nil {
		return nil, fmt.Errorf("generate order id: %w", err)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	order := domain.NewOrder(id, table.Branch, table.ID, cmd.Actor, now)
	if err := order.AddItems(items, cmd.Actor, now); err != nil {
		return nil, err
	}
	if cmd.Submit {
		if err := order.TransitionTo(domain.OrderConfirmed, cmd.Actor, now); err != nil {
			return nil, err
		}
	}

	logs := pendingLogs(order)
	steps := []step{&createOrderStep{orders: s.orders, order: order}}
	if cmd.Submit {
		steps = append(steps, &claimTableStep{tables: s.tableSync, tableID: table.ID, orderID: order.ID})
	}
	if err := runSteps(ctx, s.logger, "", steps...); err != nil {
		s.logger.Error("order_create_failed", "Failed to create order", "", map[string]interface{}{
			"order_id": order.ID,
			"table_id": table.ID,
		}, err)
		return nil, err
	}

	s.logger.Info("order_created", fmt.Sprintf("Order %s created", order.ID), "", map[string]interface{}{
		"order_id":     order.ID,
		"table_id":     table.ID,
		"status":       order.Status,
		"total_qty":    order.TotalQty,
		"total_amount": order.TotalAmount.String(),
	})

	s.publishChanges(ctx, nil, order, logs)
	if cmd.Submit {
		s.publishTickets(ctx, order, order.Items)
	}
	return order, nil
}

func (s *Service) AddItems(ctx context.Context, cmd interfaces.AddItemsCommand) error {
	if len(cmd.Items) == 0 {
		return domain.NewValidationError(domain.EntityOrder, cmd.OrderID, "at least one item is required")
	}

	unlock := s.locks.Lock(cmd.OrderID)
	defer unlock()

	return s.retryStale(cmd.OrderID, func() error {
		return s.addItems(ctx, cmd)
	})
}

func (s *Service) addItems(ctx context.Context, cmd interfaces.AddItemsCommand) error {
	order, err := s.load(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !order.IsOpen() {
		return domain.NewValidationError(domain.EntityOrder, order.ID, "order is %s and no longer accepts items", order.Status)
	}

	now := s.clock.Now()
	items, err := s.buildItems(ctx, order.Branch, cmd.Items, cmd.Actor, now)
	if err != nil {
		return err
	}

	before := order.Clone()
	if err := order.AddItems(items, cmd.Actor, now); err != nil {
		return err
	}
	logs := pendingLogs(order)
	if err := s.orders.Save(ctx, order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}

	s.logger.Info("order_items_added", fmt.Sprintf("%d items added to order %s", len(items), order.ID), "", map[string]interface{}{
		"order_id":     order.ID,
		"items":        len(items),
		"total_amount": order.TotalAmount.String(),
	})

	s.publishChanges(ctx, before, order, logs)
	if order.Status == domain.OrderConfirmed || order.Status == domain.OrderServed {
		s.publishTickets(ctx, order, items)
	}
	return nil
}

func (s *Service) UpdateItemStatus(ctx context.Context, itemID string, status domain.ItemStatus, actor string) error {
	if itemID == "" {
		return domain.NewValidationError(domain.EntityItem, "", "item id is required")
	}
	if !status.Valid() {
		return domain.NewValidationError(domain.EntityItem, itemID, "unknown item status %q", status)
	}

	orderID, err := s.orders.OrderIDByItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("find order of item: %w", err)
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	return s.retryStale(orderID, func() error {
		return s.updateItemStatus(ctx, orderID, itemID, status, actor)
	})
}

func (s *Service) updateItemStatus(ctx context.Context, orderID, itemID string, status domain.ItemStatus, actor string) error {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}

	before := order.Clone()
	prev, err := order.UpdateItemStatus(itemID, status, actor, s.clock.Now())
	if err != nil {
		return err
	}
	logs := pendingLogs(order)
	if err := s.orders.Save(ctx, order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}

	s.logger.Debug("item_status_updated", "Item status updated", "", map[string]interface{}{
		"order_id":     order.ID,
		"item_id":      itemID,
		"old_status":   prev,
		"new_status":   status,
		"order_status": order.Status,
	})
	s.publishChanges(ctx, before, order, logs)
	return nil
}

// UpdateOrderStatus applies an order transition together with its table side
// effect. If the table step fails the order is restored before returning.
// Repeating Paid on a Paid order is a no-op.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, actor string) error {
	if !status.Valid() {
		return domain.NewValidationError(domain.EntityOrder, orderID, "unknown order status %q", status)
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	return s.retryStale(orderID, func() error {
		return s.updateOrderStatus(ctx, orderID, status, actor)
	})
}

func (s *Service) updateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, actor string) error {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == domain.OrderPaid && status == domain.OrderPaid {
		s.logger.Debug("order_already_paid", "Order already paid, nothing to do", "", map[string]interface{}{
			"order_id": order.ID,
		})
		return nil
	}

	now := s.clock.Now()
	before := order.Clone()

	if status == domain.OrderConfirmed {
		if err := s.routeUnassigned(ctx, order); err != nil {
			return err
		}
	}
	if err := order.TransitionTo(status, actor, now); err != nil {
		return err
	}

	logs := pendingLogs(order)
	steps := []step{&saveOrderStep{orders: s.orders, order: order, before: before, actor: actor, clock: s.clock}}
	switch status {
	case domain.OrderConfirmed:
		steps = append(steps, &claimTableStep{tables: s.tableSync, tableID: order.TableID, orderID: order.ID})
	case domain.OrderPaid, domain.OrderCancelled:
		steps = append(steps, &releaseTableStep{tables: s.tableSync, tableID: order.TableID, orderID: order.ID})
	}
	if err := runSteps(ctx, s.logger, "", steps...); err != nil {
		return err
	}

	s.logger.Info("order_status_updated", fmt.Sprintf("Order %s is now %s", order.ID, order.Status), "", map[string]interface{}{
		"order_id":   order.ID,
		"old_status": before.Status,
		"new_status": order.Status,
		"changed_by": actor,
	})

	s.publishChanges(ctx, before, order, logs)
	if status == domain.OrderConfirmed {
		s.publishTickets(ctx, order, order.Items)
	}
	return nil
}

// MarkReadyItemsDelivered delivers the listed Ready items, or every Ready item
// when allReady is set, and returns how many were delivered.
func (s *Service) MarkReadyItemsDelivered(ctx context.Context, orderID string, itemIDs []string, allReady bool, actor string) (int, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	var n int
	err := s.retryStale(orderID, func() error {
		var err error
		n, err = s.deliverReady(ctx, orderID, itemIDs, allReady, actor)
		return err
	})
	return n, err
}

func (s *Service) deliverReady(ctx context.Context, orderID string, itemIDs []string, allReady bool, actor string) (int, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return 0, err
	}

	before := order.Clone()
	delivered, err := order.DeliverReady(itemIDs, allReady, actor, s.clock.Now())
	if err != nil {
		return 0, err
	}
	logs := pendingLogs(order)
	if err := s.orders.Save(ctx, order); err != nil {
		return 0, fmt.Errorf("save order: %w", err)
	}

	s.logger.Info("items_delivered", fmt.Sprintf("%d items delivered for order %s", len(delivered), order.ID), "", map[string]interface{}{
		"order_id":     order.ID,
		"delivered":    len(delivered),
		"order_status": order.Status,
	})
	s.publishChanges(ctx, before, order, logs)
	return len(delivered), nil
}

func (s *Service) GetKitchenQueue(ctx context.Context, branch, station, actor string) ([]domain.QueueEntry, error) {
	if branch == "" {
		return nil, domain.NewValidationError(domain.EntityBranch, "", "branch is required")
	}
	if err := s.checkAccess(ctx, actor, branch); err != nil {
		return nil, err
	}
	return s.queue.BuildQueue(ctx, branch, station)
}

// DeleteOrder voids a Draft or Cancelled order and makes sure its table is not
// left pointing at it.
func (s *Service) DeleteOrder(ctx context.Context, orderID, actor string) error {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	return s.retryStale(orderID, func() error {
		return s.deleteOrder(ctx, orderID, actor)
	})
}

func (s *Service) deleteOrder(ctx context.Context, orderID, actor string) error {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderDraft && order.Status != domain.OrderCancelled {
		return domain.NewValidationError(domain.EntityOrder, order.ID, "only draft or cancelled orders can be deleted, order is %s", order.Status)
	}

	err = runSteps(ctx, s.logger, "",
		&deleteOrderStep{orders: s.orders, before: order},
		&releaseTableStep{tables: s.tableSync, tableID: order.TableID, orderID: order.ID},
	)
	if err != nil {
		return err
	}

	s.logger.Info("order_deleted", fmt.Sprintf("Order %s deleted", order.ID), "", map[string]interface{}{
		"order_id":   order.ID,
		"deleted_by": actor,
	})
	return nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, domain.ProgressSummary, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, domain.ProgressSummary{}, err
	}
	return order, order.Progress(), nil
}

// maxWriteAttempts bounds how often one command is replayed after losing a
// version race to another writer.
const maxWriteAttempts = 3

// retryStale replays fn from a fresh read while the store reports the order
// was changed underneath it.
func (s *Service) retryStale(orderID string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, domain.ErrStaleWrite) {
			return err
		}
		s.logger.Debug("order_write_retry", "Order changed by another writer, reloading", "", map[string]interface{}{
			"order_id": orderID,
			"attempt":  attempt,
		})
	}
	return err
}

func (s *Service) load(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, domain.NewValidationError(domain.EntityOrder, "", "order id is required")
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (s *Service) checkAccess(ctx context.Context, actor, branch string) error {
	if s.access == nil {
		return nil
	}
	ok, err := s.access.UserHasBranchAccess(ctx, actor, branch)
	if err != nil {
		return fmt.Errorf("check branch access: %w", err)
	}
	if !ok {
		return domain.NewForbiddenError(domain.EntityBranch, branch, "user %q has no access to this branch", actor)
	}
	return nil
}

// buildItems resolves, prices and routes a batch. Any invalid line rejects the
// whole batch.
func (s *Service) buildItems(ctx context.Context, branch string, inputs []interfaces.ItemInput, actor string, now time.Time) ([]*domain.OrderItem, error) {
	items := make([]*domain.OrderItem, 0, len(inputs))
	for _, in := range inputs {
		menu, err := s.resolveMenuItem(ctx, in.ItemCode, in.Attributes)
		if err != nil {
			return nil, err
		}
		template := ""
		if menu.Code != in.ItemCode {
			template = in.ItemCode
		}
		item, err := domain.NewOrderItem(s.newID(), menu, template, in.Qty, in.Notes, actor, now)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if _, err := s.router.RouteItems(ctx, branch, items); err != nil {
		return nil, fmt.Errorf("route items: %w", err)
	}
	return items, nil
}

// routeUnassigned retries routing for items that had no station when added.
func (s *Service) routeUnassigned(ctx context.Context, order *domain.Order) error {
	var pending []*domain.OrderItem
	for _, it := range order.Items {
		if it.Station == "" && it.Status.InKitchen() {
			pending = append(pending, it)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if _, err := s.router.RouteItems(ctx, order.Branch, pending); err != nil {
		return fmt.Errorf("route items: %w", err)
	}
	return nil
}

func pendingLogs(order *domain.Order) []domain.StatusLog {
	return append([]domain.StatusLog(nil), order.PendingLogs()...)
}

// publishChanges emits one status update per audit row. Publish failures are
// logged and never fail the operation.
func (s *Service) publishChanges(ctx context.Context, before, order *domain.Order, logs []domain.StatusLog) {
	current := make(map[string]string)
	if before != nil {
		current[domain.EntityOrder+":"+before.ID] = string(before.Status)
		for _, it := range before.Items {
			current[domain.EntityItem+":"+it.ID] = string(it.Status)
		}
	}

	for _, l := range logs {
		key := l.Entity + ":" + l.EntityID
		old := current[key]
		current[key] = l.Status
		if old == l.Status {
			continue
		}

		msg := interfaces.StatusUpdateMessage{
			Entity:    l.Entity,
			EntityID:  l.EntityID,
			OrderID:   order.ID,
			Branch:    order.Branch,
			OldStatus: old,
			NewStatus: l.Status,
			ChangedBy: l.ChangedBy,
			Timestamp: l.ChangedAt,
		}
		if err := s.publisher.PublishStatusUpdate(ctx, msg); err != nil {
			s.logger.Error("rabbitmq_publish_failed", "Failed to publish status update", "", map[string]interface{}{
				"order_id":  order.ID,
				"entity_id": l.EntityID,
			}, err)
		}
	}
}

// publishTickets sends one kitchen ticket per station for items still to cook.
func (s *Service) publishTickets(ctx context.Context, order *domain.Order, items []*domain.OrderItem) {
	var cook []*domain.OrderItem
	for _, it := range items {
		if it.Status.InKitchen() {
			cook = append(cook, it)
		}
	}
	if len(cook) == 0 {
		return
	}

	number := domain.UnknownTable
	if table, err := s.tables.Get(ctx, order.TableID); err == nil && table.Number != "" {
		number = table.Number
	}

	groups := routing.GroupByStation(cook)
	stations := make([]string, 0, len(groups))
	for st := range groups {
		stations = append(stations, st)
	}
	sort.Strings(stations)

	for _, st := range stations {
		msg := interfaces.KitchenTicketMessage{
			OrderID:     order.ID,
			Branch:      order.Branch,
			TableNumber: number,
			Station:     st,
			Timestamp:   s.clock.Now(),
		}
		for _, it := range groups[st] {
			msg.Items = append(msg.Items, interfaces.KitchenTicketItem{
				ItemID:   it.ID,
				ItemCode: it.ItemCode,
				ItemName: it.ItemName,
				Qty:      it.Qty,
				Notes:    it.Notes,
			})
		}
		if err := s.publisher.PublishKitchenTicket(ctx, msg); err != nil {
			s.logger.Error("rabbitmq_publish_failed", "Failed to publish kitchen ticket", "", map[string]interface{}{
				"order_id": order.ID,
				"station":  st,
			}, err)
		}
	}
}
