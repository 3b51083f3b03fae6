package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
)

// Store ports. Implementations return errors that unwrap to domain.ErrNotFound,
// domain.ErrStaleWrite or domain.ErrUnavailable.

type OrderRepository interface {
	NextOrderID(ctx context.Context, branch string) (string, error)
	Create(ctx context.Context, order *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	// Save persists the order row, every item and pending status logs as one
	// unit, provided the stored version still equals order.Version. On success
	// order.Version is advanced.
	Save(ctx context.Context, order *domain.Order) error
	// Delete removes the order if it is still at version.
	Delete(ctx context.Context, id string, version int64) error
	OrderIDByItem(ctx context.Context, itemID string) (string, error)
	// ListQueueItems returns New/Cooking items of every order in branch.
	ListQueueItems(ctx context.Context, branch, station string) ([]domain.QueueItem, error)
	GetStatusHistory(ctx context.Context, orderID string) ([]domain.StatusLog, error)
}

type TableRepository interface {
	Get(ctx context.Context, id string) (*domain.Table, error)
	// Save writes occupancy only if the stored current order still equals
	// expected (nil meaning free).
	Save(ctx context.Context, table *domain.Table, expected *string) error
	ListByBranch(ctx context.Context, branch string) ([]*domain.Table, error)
}

type StationRepository interface {
	// ListActive returns active stations of branch in creation order.
	ListActive(ctx context.Context, branch string) ([]*domain.KitchenStation, error)
}

type CatalogRepository interface {
	GetItem(ctx context.Context, code string) (*domain.MenuItem, error)
	ListVariants(ctx context.Context, templateCode string) ([]*domain.MenuItem, error)
}

type AccessRepository interface {
	UserHasBranchAccess(ctx context.Context, actor, branch string) (bool, error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
