package domain

import "time"

// UnknownTable replaces a table number that cannot be resolved.
const UnknownTable = "Unknown"

// QueueItem is a persisted item still in the kitchen, joined with its order.
type QueueItem struct {
	Item    *OrderItem
	OrderID string
	Branch  string
	TableID string
}

// QueueEntry is one physical unit of an unprepared item on a kitchen display.
type QueueEntry struct {
	ItemID      string     `json:"item_id"`
	Unit        int        `json:"unit"`
	OrderID     string     `json:"order_id"`
	ItemCode    string     `json:"item_code"`
	ItemName    string     `json:"item_name"`
	Notes       string     `json:"notes,omitempty"`
	TableNumber string     `json:"table_number"`
	Station     string     `json:"station"`
	Status      ItemStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	TimeInQueue int64      `json:"time_in_queue"`
}
