package interfaces

import (
	"context"
	"time"
)

// RabbitMQ messages
type KitchenTicketMessage struct {
	OrderID     string              `json:"order_id"`
	Branch      string              `json:"branch"`
	TableNumber string              `json:"table_number"`
	Station     string              `json:"station"`
	Items       []KitchenTicketItem `json:"items"`
	Timestamp   time.Time           `json:"timestamp"`
}

type KitchenTicketItem struct {
	ItemID   string `json:"item_id"`
	ItemCode string `json:"item_code"`
	ItemName string `json:"item_name"`
	Qty      int    `json:"qty"`
	Notes    string `json:"notes,omitempty"`
}

type StatusUpdateMessage struct {
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	OrderID   string    `json:"order_id"`
	Branch    string    `json:"branch"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedBy string    `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentMessage is emitted by the payment system when a payment against an
// order's invoice is submitted or cancelled.
type PaymentMessage struct {
	PaymentID         string  `json:"payment_id"`
	OrderID           string  `json:"order_id"`
	Event             string  `json:"event"`
	OutstandingAmount float64 `json:"outstanding_amount"`
	Actor             string  `json:"actor"`
}

const (
	PaymentCompleted = "completed"
	PaymentCancelled = "cancelled"
)

// ItemStatusMessage is sent by kitchen displays.
type ItemStatusMessage struct {
	ItemID string `json:"item_id"`
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

type MessagePublisher interface {
	PublishKitchenTicket(ctx context.Context, msg KitchenTicketMessage) error
	PublishStatusUpdate(ctx context.Context, msg StatusUpdateMessage) error
}

type MessageConsumer interface {
	ConsumePayments(ctx context.Context, handler MessageHandler) error
	ConsumeItemStatus(ctx context.Context, handler MessageHandler) error
	ConsumeNotifications(ctx context.Context, handler MessageHandler) error
}

type MessageHandler func(ctx context.Context, body []byte) error

// NopPublisher drops every message.
type NopPublisher struct{}

func (NopPublisher) PublishKitchenTicket(context.Context, KitchenTicketMessage) error { return nil }
func (NopPublisher) PublishStatusUpdate(context.Context, StatusUpdateMessage) error   { return nil }
