package domain

import "time"

type OrderStatus string

const (
	OrderDraft     OrderStatus = "Draft"
	OrderConfirmed OrderStatus = "Confirmed"
	OrderServed    OrderStatus = "Served"
	OrderPaid      OrderStatus = "Paid"
	OrderCancelled OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:     {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderServed, OrderCancelled},
	OrderServed:    {OrderPaid, OrderCancelled},
	OrderPaid:      {},
	OrderCancelled: {},
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderPaid || s == OrderCancelled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ItemStatus string

const (
	ItemNew       ItemStatus = "New"
	ItemCooking   ItemStatus = "Cooking"
	ItemReady     ItemStatus = "Ready"
	ItemDelivered ItemStatus = "Delivered"
	ItemCancelled ItemStatus = "Cancelled"
)

// Delivered -> Cancelled is the refund path.
var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemNew:       {ItemCooking, ItemCancelled},
	ItemCooking:   {ItemReady, ItemCancelled},
	ItemReady:     {ItemDelivered, ItemCancelled},
	ItemDelivered: {ItemCancelled},
	ItemCancelled: {},
}

func (s ItemStatus) String() string { return string(s) }

func (s ItemStatus) Valid() bool {
	_, ok := itemTransitions[s]
	return ok
}

func (s ItemStatus) CanTransitionTo(next ItemStatus) bool {
	for _, allowed := range itemTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InKitchen reports whether the item still needs preparation.
func (s ItemStatus) InKitchen() bool {
	return s == ItemNew || s == ItemCooking
}

type TableStatus string

const (
	TableAvailable  TableStatus = "Available"
	TableInProgress TableStatus = "InProgress"
)

// StatusLog is one audit row for an order or item status change.
type StatusLog struct {
	ID        int64
	Entity    string
	EntityID  string
	OrderID   string
	Status    string
	ChangedBy string
	ChangedAt time.Time
	Note      string
}

const (
	EntityOrder   = "order"
	EntityItem    = "order_item"
	EntityTable   = "table"
	EntityStation = "kitchen_station"
	EntityMenu    = "item"
	EntityBranch  = "branch"
)
