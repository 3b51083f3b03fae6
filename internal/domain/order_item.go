package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is one ordered quantity of a menu item or variant.
type OrderItem struct {
	ID           string
	OrderID      string
	ItemCode     string
	ItemName     string
	ItemGroup    string
	TemplateCode string
	Qty          int
	Rate         decimal.Decimal
	Amount       decimal.Decimal
	Status       ItemStatus
	Station      string
	Notes        string
	CreatedAt    time.Time
	LastUpdateBy string
	LastUpdateAt time.Time
}

// NewOrderItem builds a New item from a catalog entry. Rate comes from the catalog.
func NewOrderItem(id string, menu *MenuItem, templateCode string, qty int, notes, actor string, now time.Time) (*OrderItem, error) {
	if menu.Disabled {
		return nil, NewValidationError(EntityMenu, menu.Code, "item is disabled")
	}
	if menu.IsTemplate() {
		return nil, NewValidationError(EntityMenu, menu.Code, "item is a template, resolve a variant first")
	}
	if err := menu.CheckQty(qty); err != nil {
		return nil, err
	}

	item := &OrderItem{
		ID:           id,
		ItemCode:     menu.Code,
		ItemName:     menu.Name,
		ItemGroup:    menu.ItemGroup,
		TemplateCode: templateCode,
		Qty:          qty,
		Rate:         menu.Rate,
		Status:       ItemNew,
		Notes:        notes,
		CreatedAt:    now,
		LastUpdateBy: actor,
		LastUpdateAt: now,
	}
	item.Recompute()
	return item, nil
}

// Recompute sets Amount = Rate * Qty.
func (i *OrderItem) Recompute() {
	i.Amount = i.Rate.Mul(decimal.NewFromInt(int64(i.Qty)))
}

// TransitionTo moves the item to next, stamping actor and time.
func (i *OrderItem) TransitionTo(next ItemStatus, actor string, now time.Time) error {
	if !next.Valid() {
		return NewValidationError(EntityItem, i.ID, "unknown item status %q", next)
	}
	if !i.Status.CanTransitionTo(next) {
		return NewTransitionError(EntityItem, i.ID, i.Status, next)
	}
	i.Status = next
	i.LastUpdateBy = actor
	i.LastUpdateAt = now
	return nil
}

// StationOrUnassigned returns the routed station or the Unassigned bucket.
func (i *OrderItem) StationOrUnassigned() string {
	if i.Station == "" {
		return UnassignedStation
	}
	return i.Station
}

func (i *OrderItem) Clone() *OrderItem {
	c := *i
	return &c
}
