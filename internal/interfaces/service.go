package interfaces

import (
	"context"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
)

// Service commands
type CreateOrderCommand struct {
	TableID string
	Actor   string
	Items   []ItemInput
	Submit  bool
}

type AddItemsCommand struct {
	OrderID string
	Actor   string
	Items   []ItemInput
}

// ItemInput is what a waiter sends for one line. Attributes select a variant
// when ItemCode is a template.
type ItemInput struct {
	ItemCode   string
	Qty        int
	Notes      string
	Attributes map[string]string
}

type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error)
	AddItems(ctx context.Context, cmd AddItemsCommand) error
	UpdateItemStatus(ctx context.Context, itemID string, status domain.ItemStatus, actor string) error
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, actor string) error
	MarkReadyItemsDelivered(ctx context.Context, orderID string, itemIDs []string, allReady bool, actor string) (int, error)
	GetKitchenQueue(ctx context.Context, branch, station, actor string) ([]domain.QueueEntry, error)
	ResolveVariant(ctx context.Context, templateCode string, attrs map[string]string) (string, error)
	DeleteOrder(ctx context.Context, orderID, actor string) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, domain.ProgressSummary, error)
}

type TrackingService interface {
	TableOverview(ctx context.Context, branch string) ([]TableOverview, error)
	OrderHistory(ctx context.Context, orderID string) ([]domain.StatusLog, error)
	ListStations(ctx context.Context, branch string) ([]*domain.KitchenStation, error)
}

type TableOverview struct {
	TableID string
	Number  string
	Status  domain.TableStatus
	OrderID *string
	Summary domain.ProgressSummary
}
