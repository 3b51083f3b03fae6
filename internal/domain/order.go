package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a waiter's ticket against one table and the aggregate root for its items.
// TotalQty and TotalAmount are derived and never set by callers.
type Order struct {
	ID          string
	Branch      string
	TableID     string
	Status      OrderStatus
	OrderedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	TotalQty    int
	TotalAmount decimal.Decimal
	Items       []*OrderItem

	// Version is the store revision this copy was read at. Stores reject a
	// save or delete when the stored revision has moved on.
	Version int64

	pendingLogs []StatusLog
}

// NewOrder creates a Draft order with no items.
func NewOrder(id, branch, tableID, actor string, now time.Time) *Order {
	o := &Order{
		ID:          id,
		Branch:      branch,
		TableID:     tableID,
		Status:      OrderDraft,
		OrderedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
		TotalAmount: decimal.Zero,
	}
	o.record(EntityOrder, id, string(OrderDraft), actor, now, "")
	return o
}

// IsOpen reports whether the order still accepts changes.
func (o *Order) IsOpen() bool {
	return !o.Status.Terminal()
}

// AddItems appends a fully validated batch. Either every item is added or none.
func (o *Order) AddItems(items []*OrderItem, actor string, now time.Time) error {
	if len(items) == 0 {
		return NewValidationError(EntityOrder, o.ID, "at least one item is required")
	}
	if !o.IsOpen() {
		return NewValidationError(EntityOrder, o.ID, "order is %s and no longer accepts items", o.Status)
	}
	seen := make(map[string]bool, len(o.Items)+len(items))
	for _, it := range o.Items {
		seen[it.ID] = true
	}
	for _, it := range items {
		if it.ID == "" || seen[it.ID] {
			return NewValidationError(EntityItem, it.ID, "duplicate or empty item id")
		}
		if it.Qty <= 0 {
			return NewValidationError(EntityItem, it.ID, "quantity must be greater than 0")
		}
		seen[it.ID] = true
	}

	for _, it := range items {
		it.OrderID = o.ID
		it.Recompute()
		o.Items = append(o.Items, it)
		o.record(EntityItem, it.ID, string(it.Status), actor, now, "")
	}
	o.Recalculate()
	o.UpdatedAt = now
	return nil
}

// Recalculate derives TotalQty and TotalAmount from non-cancelled items.
func (o *Order) Recalculate() {
	qty := 0
	amount := decimal.Zero
	for _, it := range o.Items {
		if it.Status == ItemCancelled {
			continue
		}
		qty += it.Qty
		amount = amount.Add(it.Amount)
	}
	o.TotalQty = qty
	o.TotalAmount = amount
}

func (o *Order) Item(id string) (*OrderItem, bool) {
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return nil, false
}

// activeItems counts items that are not cancelled.
func (o *Order) activeItems() int {
	n := 0
	for _, it := range o.Items {
		if it.Status != ItemCancelled {
			n++
		}
	}
	return n
}

// TransitionTo applies an order status change. Cancelling cascades to items that
// have not been delivered.
func (o *Order) TransitionTo(next OrderStatus, actor string, now time.Time) error {
	if !next.Valid() {
		return NewValidationError(EntityOrder, o.ID, "unknown order status %q", next)
	}
	if !o.Status.CanTransitionTo(next) {
		return NewTransitionError(EntityOrder, o.ID, o.Status, next)
	}
	if o.Status == OrderDraft && next == OrderConfirmed && o.activeItems() == 0 {
		return NewValidationError(EntityOrder, o.ID, "order must contain at least one item before it can be confirmed")
	}

	if next == OrderCancelled {
		for _, it := range o.Items {
			if it.Status == ItemDelivered || it.Status == ItemCancelled {
				continue
			}
			if err := it.TransitionTo(ItemCancelled, actor, now); err != nil {
				return fmt.Errorf("cascade cancel: %w", err)
			}
			o.record(EntityItem, it.ID, string(ItemCancelled), actor, now, "order cancelled")
		}
		o.Recalculate()
	}

	o.Status = next
	o.UpdatedAt = now
	o.record(EntityOrder, o.ID, string(next), actor, now, "")
	return nil
}

// UpdateItemStatus moves one item and re-derives totals and the served state.
// It returns the item's previous status.
func (o *Order) UpdateItemStatus(itemID string, next ItemStatus, actor string, now time.Time) (ItemStatus, error) {
	if !o.IsOpen() {
		return "", NewValidationError(EntityOrder, o.ID, "order is %s and its items can no longer change", o.Status)
	}
	it, ok := o.Item(itemID)
	if !ok {
		return "", NewNotFoundError(EntityItem, itemID)
	}
	prev := it.Status
	if err := it.TransitionTo(next, actor, now); err != nil {
		return "", err
	}
	o.record(EntityItem, it.ID, string(next), actor, now, "")
	o.Recalculate()
	o.UpdatedAt = now
	o.deriveServed(actor, now)
	return prev, nil
}

// DeliverReady marks Ready items as Delivered, either the listed ones or every
// Ready item when allReady is set. Listed items must all be Ready.
func (o *Order) DeliverReady(itemIDs []string, allReady bool, actor string, now time.Time) ([]*OrderItem, error) {
	if !o.IsOpen() {
		return nil, NewValidationError(EntityOrder, o.ID, "order is %s and its items can no longer change", o.Status)
	}
	if !allReady && len(itemIDs) == 0 {
		return nil, NewValidationError(EntityOrder, o.ID, "item ids are required unless all ready items are requested")
	}

	var targets []*OrderItem
	if allReady {
		for _, it := range o.Items {
			if it.Status == ItemReady {
				targets = append(targets, it)
			}
		}
	} else {
		seen := make(map[string]bool, len(itemIDs))
		for _, id := range itemIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			it, ok := o.Item(id)
			if !ok {
				return nil, NewNotFoundError(EntityItem, id)
			}
			if it.Status != ItemReady {
				return nil, NewTransitionError(EntityItem, id, it.Status, ItemDelivered)
			}
			targets = append(targets, it)
		}
	}
	if len(targets) == 0 {
		return nil, NewValidationError(EntityOrder, o.ID, "no items were ready to deliver")
	}

	for _, it := range targets {
		if err := it.TransitionTo(ItemDelivered, actor, now); err != nil {
			return nil, err
		}
		o.record(EntityItem, it.ID, string(ItemDelivered), actor, now, "")
	}
	o.UpdatedAt = now
	o.deriveServed(actor, now)
	return targets, nil
}

// deriveServed moves a Confirmed order to Served once every active item is delivered.
func (o *Order) deriveServed(actor string, now time.Time) bool {
	if o.Status != OrderConfirmed || o.activeItems() == 0 {
		return false
	}
	for _, it := range o.Items {
		if it.Status != ItemCancelled && it.Status != ItemDelivered {
			return false
		}
	}
	o.Status = OrderServed
	o.record(EntityOrder, o.ID, string(OrderServed), actor, now, "all items delivered")
	return true
}

// Progress returns the read-only summary of item units by status.
func (o *Order) Progress() ProgressSummary {
	return Summarize(o.Items)
}

func (o *Order) record(entity, id, status, actor string, now time.Time, note string) {
	o.pendingLogs = append(o.pendingLogs, StatusLog{
		Entity:    entity,
		EntityID:  id,
		OrderID:   o.ID,
		Status:    status,
		ChangedBy: actor,
		ChangedAt: now,
		Note:      note,
	})
}

// RecordNote appends an audit row without changing state.
func (o *Order) RecordNote(actor string, now time.Time, note string) {
	o.record(EntityOrder, o.ID, string(o.Status), actor, now, note)
}

// PendingLogs returns audit rows produced since the last save.
func (o *Order) PendingLogs() []StatusLog {
	return o.pendingLogs
}

func (o *Order) ClearPendingLogs() {
	o.pendingLogs = nil
}

// Clone deep-copies the order, items and pending logs.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]*OrderItem, len(o.Items))
	for i, it := range o.Items {
		c.Items[i] = it.Clone()
	}
	c.pendingLogs = append([]StatusLog(nil), o.pendingLogs...)
	return &c
}
