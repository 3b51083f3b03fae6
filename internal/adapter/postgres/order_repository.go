package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

type orderRepository struct {
	db      DB
	timeout time.Duration
}

func NewOrderRepository(db DB, timeout time.Duration) interfaces.OrderRepository {
	return &orderRepository{db: db, timeout: timeout}
}

func (r *orderRepository) NextOrderID(ctx context.Context, branch string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	code := strings.ToUpper(branch)
	var n int64
	if err := r.db.QueryRow(ctx, nextOrderNumberSQL, code).Scan(&n); err != nil {
		return "", mapError("next order id", domain.EntityBranch, code, err)
	}
	return fmt.Sprintf("WO-%s-%08d", code, n), nil
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return mapError("begin transaction", domain.EntityOrder, order.ID, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertOrderSQL,
		order.ID, order.Branch, order.TableID, string(order.Status), order.OrderedBy,
		order.TotalQty, order.TotalAmount.String(), order.CreatedAt, order.UpdatedAt, order.Version,
	)
	if err != nil {
		return mapError("insert order", domain.EntityOrder, order.ID, err)
	}
	if err := writeItemsAndLogs(ctx, tx, order); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError("commit order", domain.EntityOrder, order.ID, err)
	}
	order.ClearPendingLogs()
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		o      domain.Order
		status string
		total  string
	)
	err := r.db.QueryRow(ctx, selectOrderSQL, id).Scan(
		&o.ID, &o.Branch, &o.TableID, &status, &o.OrderedBy, &o.TotalQty, &total, &o.CreatedAt, &o.UpdatedAt, &o.Version,
	)
	if err != nil {
		return nil, mapError("get order", domain.EntityOrder, id, err)
	}
	o.Status = domain.OrderStatus(status)
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("get order: bad total_amount %q: %w", total, err)
	}

	rows, err := r.db.Query(ctx, selectItemsSQL, id)
	if err != nil {
		return nil, mapError("load order items", domain.EntityOrder, id, err)
	}
	defer rows.Close()

	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("load order items", domain.EntityOrder, id, err)
	}
	return &o, nil
}

// Save bumps the row version only if it still matches order.Version, so a
// writer in another process that read the same revision loses.
func (r *orderRepository) Save(ctx context.Context, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return mapError("begin transaction", domain.EntityOrder, order.ID, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, updateOrderSQL,
		order.ID, string(order.Status), order.TotalQty, order.TotalAmount.String(), order.UpdatedAt, order.Version,
	)
	if err != nil {
		return mapError("update order", domain.EntityOrder, order.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrStale(ctx, tx, order.ID)
	}

	ids := make([]string, len(order.Items))
	for i, it := range order.Items {
		ids[i] = it.ID
	}
	if _, err := tx.Exec(ctx, deleteMissingItemsSQL, order.ID, ids); err != nil {
		return mapError("delete removed items", domain.EntityOrder, order.ID, err)
	}
	if err := writeItemsAndLogs(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError("commit order", domain.EntityOrder, order.ID, err)
	}
	order.Version++
	order.ClearPendingLogs()
	return nil
}

// missingOrStale tells a vanished order from one another writer moved on.
func (r *orderRepository) missingOrStale(ctx context.Context, q querier, id string) error {
	var exists bool
	if err := q.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return mapError("check order", domain.EntityOrder, id, err)
	}
	if !exists {
		return domain.NewNotFoundError(domain.EntityOrder, id)
	}
	return domain.NewStaleWriteError(domain.EntityOrder, id)
}

func writeItemsAndLogs(ctx context.Context, tx Tx, order *domain.Order) error {
	for pos, it := range order.Items {
		_, err := tx.Exec(ctx, upsertItemSQL,
			it.ID, order.ID, pos, it.ItemCode, it.ItemName, it.ItemGroup, it.TemplateCode, it.Qty,
			it.Rate.String(), it.Amount.String(), string(it.Status), it.Station, it.Notes,
			it.CreatedAt, it.LastUpdateBy, it.LastUpdateAt,
		)
		if err != nil {
			return mapError("upsert order item", domain.EntityItem, it.ID, err)
		}
	}
	for _, l := range order.PendingLogs() {
		_, err := tx.Exec(ctx, insertStatusLogSQL,
			l.Entity, l.EntityID, l.OrderID, l.Status, l.ChangedBy, l.ChangedAt, l.Note,
		)
		if err != nil {
			return mapError("insert status log", domain.EntityOrder, order.ID, err)
		}
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id string, version int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, deleteOrderSQL, id, version)
	if err != nil {
		return mapError("delete order", domain.EntityOrder, id, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrStale(ctx, r.db, id)
	}
	return nil
}

func (r *orderRepository) OrderIDByItem(ctx context.Context, itemID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var orderID string
	if err := r.db.QueryRow(ctx, selectOrderIDByItemSQL, itemID).Scan(&orderID); err != nil {
		return "", mapError("find item order", domain.EntityItem, itemID, err)
	}
	return orderID, nil
}

func (r *orderRepository) ListQueueItems(ctx context.Context, branch, station string) ([]domain.QueueItem, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectQueueItemsSQL, branch, station)
	if err != nil {
		return nil, mapError("list queue items", domain.EntityBranch, branch, err)
	}
	defer rows.Close()

	var out []domain.QueueItem
	for rows.Next() {
		var q domain.QueueItem
		it, err := scanItem(rows, &q.Branch, &q.TableID)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		q.Item = it
		q.OrderID = it.OrderID
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list queue items", domain.EntityBranch, branch, err)
	}
	return out, nil
}

func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID string) ([]domain.StatusLog, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, selectStatusHistorySQL, orderID)
	if err != nil {
		return nil, mapError("get status history", domain.EntityOrder, orderID, err)
	}
	defer rows.Close()

	var out []domain.StatusLog
	for rows.Next() {
		var l domain.StatusLog
		if err := rows.Scan(&l.ID, &l.Entity, &l.EntityID, &l.OrderID, &l.Status, &l.ChangedBy, &l.ChangedAt, &l.Note); err != nil {
			return nil, fmt.Errorf("scan status log: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("get status history", domain.EntityOrder, orderID, err)
	}

	if len(out) == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, orderExistsSQL, orderID).Scan(&exists); err != nil {
			return nil, mapError("get status history", domain.EntityOrder, orderID, err)
		}
		if !exists {
			return nil, domain.NewNotFoundError(domain.EntityOrder, orderID)
		}
	}
	return out, nil
}

// scanItem reads the order_items column list, followed by any extra columns.
func scanItem(row Row, extra ...any) (*domain.OrderItem, error) {
	var (
		it           domain.OrderItem
		rate, amount string
		status       string
	)
	dest := []any{
		&it.ID, &it.OrderID, &it.ItemCode, &it.ItemName, &it.ItemGroup, &it.TemplateCode, &it.Qty,
		&rate, &amount, &status, &it.Station, &it.Notes, &it.CreatedAt, &it.LastUpdateBy, &it.LastUpdateAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return buildItem(&it, rate, amount, status)
}

func buildItem(it *domain.OrderItem, rate, amount, status string) (*domain.OrderItem, error) {
	var err error
	if it.Rate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("bad rate %q for item %s: %w", rate, it.ID, err)
	}
	if it.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("bad amount %q for item %s: %w", amount, it.ID, err)
	}
	it.Status = domain.ItemStatus(status)
	if !it.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q for item %s", status, it.ID)
	}
	return it, nil
}
