package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/YelzhanWeb/waiter-orders/internal/domain"
)

// Store keeps every aggregate in process memory. Values are cloned on the way in
// and out so callers never share state with the store.
type Store struct {
	mu sync.RWMutex

	orders   map[string]*domain.Order
	counters map[string]int
	history  []domain.StatusLog
	tables   map[string]*domain.Table
	stations []*domain.KitchenStation
	catalog  map[string]*domain.MenuItem
	access   map[string]map[string]bool
}

func NewStore() *Store {
	return &Store{
		orders:   make(map[string]*domain.Order),
		counters: make(map[string]int),
		tables:   make(map[string]*domain.Table),
		catalog:  make(map[string]*domain.MenuItem),
		access:   make(map[string]map[string]bool),
	}
}

func (s *Store) Orders() *OrderRepository     { return &OrderRepository{s: s} }
func (s *Store) Tables() *TableRepository     { return &TableRepository{s: s} }
func (s *Store) Stations() *StationRepository { return &StationRepository{s: s} }
func (s *Store) Catalog() *CatalogRepository  { return &CatalogRepository{s: s} }
func (s *Store) Access() *AccessRepository    { return &AccessRepository{s: s} }

// Seeding helpers

func (s *Store) AddTable(t *domain.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.ID] = t.Clone()
}

// AddStation appends a station; creation order is insertion order.
func (s *Store) AddStation(st *domain.KitchenStation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *st
	c.ItemGroups = append([]domain.StationItemGroup(nil), st.ItemGroups...)
	s.stations = append(s.stations, &c)
}

func (s *Store) AddMenuItem(m *domain.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog[m.Code] = cloneMenuItem(m)
}

// GrantAccess allows actor to work in branch. The branch "*" matches every branch.
func (s *Store) GrantAccess(actor, branch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.access[actor] == nil {
		s.access[actor] = make(map[string]bool)
	}
	s.access[actor][branch] = true
}

type OrderRepository struct{ s *Store }

func (r *OrderRepository) NextOrderID(_ context.Context, branch string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	code := strings.ToUpper(branch)
	r.s.counters[code]++
	return fmt.Sprintf("WO-%s-%08d", code, r.s.counters[code]), nil
}

func (r *OrderRepository) Create(_ context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[order.ID]; ok {
		return domain.NewConflictError(domain.EntityOrder, order.ID, "order already exists")
	}
	r.s.store(order)
	return nil
}

func (r *OrderRepository) Get(_ context.Context, id string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, domain.NewNotFoundError(domain.EntityOrder, id)
	}
	return o.Clone(), nil
}

func (r *OrderRepository) Save(_ context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.orders[order.ID]
	if !ok {
		return domain.NewNotFoundError(domain.EntityOrder, order.ID)
	}
	if cur.Version != order.Version {
		return domain.NewStaleWriteError(domain.EntityOrder, order.ID)
	}
	order.Version++
	r.s.store(order)
	return nil
}

func (r *OrderRepository) Delete(_ context.Context, id string, version int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.orders[id]
	if !ok {
		return domain.NewNotFoundError(domain.EntityOrder, id)
	}
	if cur.Version != version {
		return domain.NewStaleWriteError(domain.EntityOrder, id)
	}
	delete(r.s.orders, id)
	return nil
}

func (r *OrderRepository) OrderIDByItem(_ context.Context, itemID string) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for id, o := range r.s.orders {
		if _, ok := o.Item(itemID); ok {
			return id, nil
		}
	}
	return "", domain.NewNotFoundError(domain.EntityItem, itemID)
}

func (r *OrderRepository) ListQueueItems(_ context.Context, branch, station string) ([]domain.QueueItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.QueueItem
	for _, o := range r.s.orders {
		if o.Branch != branch {
			continue
		}
		for _, it := range o.Items {
			if !it.Status.InKitchen() {
				continue
			}
			if station != "" && it.StationOrUnassigned() != station {
				continue
			}
			out = append(out, domain.QueueItem{
				Item:    it.Clone(),
				OrderID: o.ID,
				Branch:  o.Branch,
				TableID: o.TableID,
			})
		}
	}
	return out, nil
}

func (r *OrderRepository) GetStatusHistory(_ context.Context, orderID string) ([]domain.StatusLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.StatusLog
	for _, l := range r.s.history {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		if _, ok := r.s.orders[orderID]; !ok {
			return nil, domain.NewNotFoundError(domain.EntityOrder, orderID)
		}
	}
	return out, nil
}

// store must be called with mu held.
func (s *Store) store(order *domain.Order) {
	for _, l := range order.PendingLogs() {
		l.ID = int64(len(s.history) + 1)
		s.history = append(s.history, l)
	}
	order.ClearPendingLogs()
	s.orders[order.ID] = order.Clone()
}

type TableRepository struct{ s *Store }

func (r *TableRepository) Get(_ context.Context, id string) (*domain.Table, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tables[id]
	if !ok {
		return nil, domain.NewNotFoundError(domain.EntityTable, id)
	}
	return t.Clone(), nil
}

func (r *TableRepository) Save(_ context.Context, table *domain.Table, expected *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.tables[table.ID]
	if !ok {
		return domain.NewNotFoundError(domain.EntityTable, table.ID)
	}
	if !sameRef(cur.CurrentOrder, expected) {
		return domain.NewStaleWriteError(domain.EntityTable, table.ID)
	}
	r.s.tables[table.ID] = table.Clone()
	return nil
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *TableRepository) ListByBranch(_ context.Context, branch string) ([]*domain.Table, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.Table
	for _, t := range r.s.tables {
		if t.Branch == branch {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

type StationRepository struct{ s *Store }

func (r *StationRepository) ListActive(_ context.Context, branch string) ([]*domain.KitchenStation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.KitchenStation
	for _, st := range r.s.stations {
		if st.Branch != branch || !st.Active {
			continue
		}
		c := *st
		c.ItemGroups = append([]domain.StationItemGroup(nil), st.ItemGroups...)
		out = append(out, &c)
	}
	return out, nil
}

type CatalogRepository struct{ s *Store }

func (r *CatalogRepository) GetItem(_ context.Context, code string) (*domain.MenuItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.catalog[code]
	if !ok {
		return nil, domain.NewNotFoundError(domain.EntityMenu, code)
	}
	return cloneMenuItem(m), nil
}

func (r *CatalogRepository) ListVariants(_ context.Context, templateCode string) ([]*domain.MenuItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.MenuItem
	for _, m := range r.s.catalog {
		if m.VariantOf == templateCode {
			out = append(out, cloneMenuItem(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type AccessRepository struct{ s *Store }

func (r *AccessRepository) UserHasBranchAccess(_ context.Context, actor, branch string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	branches := r.s.access[actor]
	return branches[branch] || branches["*"], nil
}

func cloneMenuItem(m *domain.MenuItem) *domain.MenuItem {
	c := *m
	c.Attributes = append([]domain.VariantAttribute(nil), m.Attributes...)
	return &c
}
