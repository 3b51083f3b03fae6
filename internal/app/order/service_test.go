package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/adapter/memory"
	"github.com/YelzhanWeb/waiter-orders/internal/app/kitchen"
	"github.com/YelzhanWeb/waiter-orders/internal/app/routing"
	"github.com/YelzhanWeb/waiter-orders/internal/app/tablesync"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingPublisher struct {
	mu      sync.Mutex
	tickets []interfaces.KitchenTicketMessage
	updates []interfaces.StatusUpdateMessage
}

func (p *recordingPublisher) PublishKitchenTicket(_ context.Context, msg interfaces.KitchenTicketMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickets = append(p.tickets, msg)
	return nil
}

func (p *recordingPublisher) PublishStatusUpdate(_ context.Context, msg interfaces.StatusUpdateMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, msg)
	return nil
}

// flakyTables fails table writes on demand.
type flakyTables struct {
	TableSync
	failClaim   bool
	failRelease bool
}

func (f *flakyTables) Claim(ctx context.Context, tableID, orderID string) error {
	if f.failClaim {
		return fmt.Errorf("table store: %w", domain.ErrUnavailable)
	}
	return f.TableSync.Claim(ctx, tableID, orderID)
}

func (f *flakyTables) Release(ctx context.Context, tableID, orderID string) error {
	if f.failRelease {
		return fmt.Errorf("table store: %w", domain.ErrUnavailable)
	}
	return f.TableSync.Release(ctx, tableID, orderID)
}

type fixture struct {
	store  *memory.Store
	svc    *Service
	pub    *recordingPublisher
	tables *flakyTables
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddTable(&domain.Table{ID: "T5", Number: "5", Branch: "JKT", Seats: 4, Active: true, Status: domain.TableAvailable})
	store.AddTable(&domain.Table{ID: "T6", Number: "6", Branch: "JKT", Seats: 2, Active: true, Status: domain.TableAvailable})
	store.AddTable(&domain.Table{ID: "T9", Number: "9", Branch: "JKT", Active: false, Status: domain.TableAvailable})
	store.AddStation(&domain.KitchenStation{Name: "Grill", Branch: "JKT", Active: true, ItemGroups: []domain.StationItemGroup{{ItemGroup: "Mains"}}})
	store.AddStation(&domain.KitchenStation{Name: "Bar", Branch: "JKT", Active: true, ItemGroups: []domain.StationItemGroup{{ItemGroup: "Drinks"}}})

	for _, m := range []*domain.MenuItem{
		{Code: "BURGER", Name: "Burger", ItemGroup: "Mains", Rate: decimal.RequireFromString("8.50")},
		{Code: "COLA", Name: "Cola", ItemGroup: "Drinks", Rate: decimal.RequireFromString("2.00")},
		{Code: "CAKE", Name: "Cake", ItemGroup: "Desserts", Rate: decimal.RequireFromString("4.25")},
		{Code: "STEAK", Name: "Steak", ItemGroup: "Mains", Rate: decimal.RequireFromString("20"), MaxQty: 2},
		{Code: "TEA", Name: "Tea", ItemGroup: "Drinks", HasVariants: true},
		{Code: "TEA-HOT", Name: "Hot Tea", ItemGroup: "Drinks", VariantOf: "TEA", Rate: decimal.RequireFromString("1.50"),
			Attributes: []domain.VariantAttribute{{Attribute: "Temperature", FieldName: "temperature", Value: "Hot"}}},
		{Code: "TEA-ICED", Name: "Iced Tea", ItemGroup: "Drinks", VariantOf: "TEA", Rate: decimal.RequireFromString("1.75"),
			Attributes: []domain.VariantAttribute{{Attribute: "Temperature", FieldName: "temperature", Value: "Iced"}}},
	} {
		store.AddMenuItem(m)
	}
	store.GrantAccess("waiter", "JKT")
	store.GrantAccess("chef", "JKT")

	clock := fixedClock{t0}
	log := logger.NewNop()
	tables := &flakyTables{TableSync: tablesync.NewSynchronizer(store.Tables(), store.Orders(), log)}
	pub := &recordingPublisher{}

	var seq atomic.Int64
	svc := NewService(Params{
		Orders:    store.Orders(),
		Tables:    store.Tables(),
		Catalog:   store.Catalog(),
		Access:    store.Access(),
		Router:    routing.NewResolver(store.Stations(), routing.NewMemoryCache(clock), routing.DefaultTTL, log),
		TableSync: tables,
		Queue:     kitchen.NewProjector(store.Orders(), store.Tables(), fixedClock{t0.Add(time.Minute)}, log),
		Publisher: pub,
		Clock:     clock,
		Logger:    log,
		NewID:     func() string { return fmt.Sprintf("item-%d", seq.Add(1)) },
	})
	return &fixture{store: store, svc: svc, pub: pub, tables: tables}
}

func (f *fixture) create(t *testing.T, table string, submit bool, items ...interfaces.ItemInput) *domain.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), interfaces.CreateOrderCommand{TableID: table, Actor: "waiter", Items: items, Submit: submit})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return o
}

func (f *fixture) order(t *testing.T, id string) *domain.Order {
	t.Helper()
	o, err := f.store.Orders().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get order %s: %v", id, err)
	}
	return o
}

func (f *fixture) table(t *testing.T, id string) *domain.Table {
	t.Helper()
	tb, err := f.store.Tables().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get table %s: %v", id, err)
	}
	return tb
}

func burgers(n int) interfaces.ItemInput { return interfaces.ItemInput{ItemCode: "BURGER", Qty: n} }
func colas(n int) interfaces.ItemInput   { return interfaces.ItemInput{ItemCode: "COLA", Qty: n} }

func TestCreateDraftOrder(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "T5", false, burgers(2), colas(1), interfaces.ItemInput{ItemCode: "CAKE", Qty: 1})

	if o.ID != "WO-JKT-00000001" || o.Status != domain.OrderDraft {
		t.Fatalf("order = %s %s", o.ID, o.Status)
	}
	if o.TotalQty != 4 || !o.TotalAmount.Equal(decimal.RequireFromString("23.25")) {
		t.Errorf("totals = %d %s", o.TotalQty, o.TotalAmount)
	}
	wantStations := []string{"Grill", "Bar", ""}
	for i, it := range o.Items {
		if it.Station != wantStations[i] {
			t.Errorf("item %s station = %q, want %q", it.ItemCode, it.Station, wantStations[i])
		}
	}
	if tb := f.table(t, "T5"); tb.Status != domain.TableAvailable {
		t.Errorf("draft order claimed the table: %+v", tb)
	}
	if len(f.pub.tickets) != 0 {
		t.Errorf("draft order sent %d tickets", len(f.pub.tickets))
	}
}

func TestCreateAndSubmit(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "T5", true, burgers(2), colas(1), interfaces.ItemInput{ItemCode: "CAKE", Qty: 1})

	if o.Status != domain.OrderConfirmed {
		t.Fatalf("status = %s", o.Status)
	}
	tb := f.table(t, "T5")
	if tb.Status != domain.TableInProgress || !tb.HeldBy(o.ID) {
		t.Errorf("table = %+v", tb)
	}

	stations := map[string]int{}
	for _, tk := range f.pub.tickets {
		stations[tk.Station] = len(tk.Items)
		if tk.TableNumber != "5" {
			t.Errorf("ticket table = %q", tk.TableNumber)
		}
	}
	want := map[string]int{"Grill": 1, "Bar": 1, domain.UnassignedStation: 1}
	if fmt.Sprint(stations) != fmt.Sprint(want) {
		t.Errorf("tickets = %v, want %v", stations, want)
	}
}

func TestCreateOrderRejects(t *testing.T) {
	tests := []struct {
		name    string
		cmd     interfaces.CreateOrderCommand
		wantErr error
	}{
		{"no items", interfaces.CreateOrderCommand{TableID: "T5", Actor: "waiter"}, domain.ErrValidation},
		{"no table", interfaces.CreateOrderCommand{Actor: "waiter", Items: []interfaces.ItemInput{burgers(1)}}, domain.ErrValidation},
		{"unknown table", interfaces.CreateOrderCommand{TableID: "T404", Actor: "waiter", Items: []interfaces.ItemInput{burgers(1)}}, domain.ErrNotFound},
		{"inactive table", interfaces.CreateOrderCommand{TableID: "T9", Actor: "waiter", Items: []interfaces.ItemInput{burgers(1)}}, domain.ErrValidation},
		{"zero qty", interfaces.CreateOrderCommand{TableID: "T5", Actor: "waiter", Items: []interfaces.ItemInput{burgers(0)}}, domain.ErrValidation},
		{"above max qty", interfaces.CreateOrderCommand{TableID: "T5", Actor: "waiter", Items: []interfaces.ItemInput{{ItemCode: "STEAK", Qty: 3}}}, domain.ErrValidation},
		{"unknown item", interfaces.CreateOrderCommand{TableID: "T5", Actor: "waiter", Items: []interfaces.ItemInput{{ItemCode: "PIZZA", Qty: 1}}}, domain.ErrNotFound},
		{"template without attributes", interfaces.CreateOrderCommand{TableID: "T5", Actor: "waiter", Items: []interfaces.ItemInput{{ItemCode: "TEA", Qty: 1}}}, domain.ErrValidation},
		{"bad line rejects batch", interfaces.CreateOrderCommand{TableID: "T5", Actor: "waiter", Items: []interfaces.ItemInput{burgers(1), colas(-1)}}, domain.ErrValidation},
		{"no branch access", interfaces.CreateOrderCommand{TableID: "T5", Actor: "stranger", Items: []interfaces.ItemInput{burgers(1)}}, domain.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateOrder(context.Background(), tt.cmd)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if _, err := f.store.Orders().Get(context.Background(), "WO-JKT-00000001"); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("rejected order was persisted")
			}
		})
	}
}

func TestCreateWithVariant(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "T5", false, interfaces.ItemInput{ItemCode: "TEA", Qty: 2, Attributes: map[string]string{"temperature": "Iced"}})

	it := o.Items[0]
	if it.ItemCode != "TEA-ICED" || it.TemplateCode != "TEA" || it.Station != "Bar" {
		t.Errorf("item = %+v", it)
	}
	if !it.Amount.Equal(decimal.RequireFromString("3.50")) {
		t.Errorf("amount = %s", it.Amount)
	}
}

func TestTableConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "T5", true, burgers(1))
	b := f.create(t, "T5", false, colas(1))

	err := f.svc.UpdateOrderStatus(ctx, b.ID, domain.OrderConfirmed, "waiter")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("got %v, want conflict", err)
	}
	if got := f.order(t, b.ID); got.Status != domain.OrderDraft {
		t.Errorf("order B status = %s, want Draft after rollback", got.Status)
	}
	if tb := f.table(t, "T5"); !tb.HeldBy(a.ID) {
		t.Errorf("table moved away from A: %+v", tb)
	}

	// Once A is paid the table frees up for B.
	for _, it := range a.Items {
		for _, st := range []domain.ItemStatus{domain.ItemCooking, domain.ItemReady} {
			if err := f.svc.UpdateItemStatus(ctx, it.ID, st, "chef"); err != nil {
				t.Fatal(err)
			}
		}
	}
	if _, err := f.svc.MarkReadyItemsDelivered(ctx, a.ID, nil, true, "waiter"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.UpdateOrderStatus(ctx, a.ID, domain.OrderPaid, "cashier"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.UpdateOrderStatus(ctx, b.ID, domain.OrderConfirmed, "waiter"); err != nil {
		t.Fatalf("confirm B after A paid: %v", err)
	}
	if tb := f.table(t, "T5"); !tb.HeldBy(b.ID) {
		t.Errorf("table = %+v, want held by B", tb)
	}
}

func TestSubmitRollsBackWhenClaimFails(t *testing.T) {
	f := newFixture(t)
	f.tables.failClaim = true

	_, err := f.svc.CreateOrder(context.Background(), interfaces.CreateOrderCommand{TableID: "T5", Actor: "waiter", Items: []interfaces.ItemInput{burgers(1)}, Submit: true})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("got %v, want unavailable", err)
	}
	if _, err := f.store.Orders().Get(context.Background(), "WO-JKT-00000001"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("order survived failed submit: %v", err)
	}
	if tb := f.table(t, "T5"); tb.Status != domain.TableAvailable {
		t.Errorf("table = %+v", tb)
	}
}

func servedOrder(t *testing.T, f *fixture) *domain.Order {
	t.Helper()
	ctx := context.Background()
	o := f.create(t, "T5", true, burgers(1), colas(2))
	for _, it := range o.Items {
		for _, st := range []domain.ItemStatus{domain.ItemCooking, domain.ItemReady} {
			if err := f.svc.UpdateItemStatus(ctx, it.ID, st, "chef"); err != nil {
				t.Fatalf("item %s -> %s: %v", it.ID, st, err)
			}
		}
	}
	n, err := f.svc.MarkReadyItemsDelivered(ctx, o.ID, nil, true, "waiter")
	if err != nil || n != 2 {
		t.Fatalf("deliver: n=%d err=%v", n, err)
	}
	got := f.order(t, o.ID)
	if got.Status != domain.OrderServed {
		t.Fatalf("status = %s, want Served", got.Status)
	}
	return got
}

func TestPayRollsBackWhenReleaseFails(t *testing.T) {
	f := newFixture(t)
	o := servedOrder(t, f)
	f.tables.failRelease = true

	err := f.svc.UpdateOrderStatus(context.Background(), o.ID, domain.OrderPaid, "cashier")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("got %v, want unavailable", err)
	}
	if got := f.order(t, o.ID); got.Status != domain.OrderServed {
		t.Errorf("status = %s, want Served after rollback", got.Status)
	}
	if tb := f.table(t, "T5"); !tb.HeldBy(o.ID) {
		t.Errorf("table = %+v", tb)
	}

	history, err := f.store.Orders().GetStatusHistory(context.Background(), o.ID)
	if err != nil {
		t.Fatal(err)
	}
	last := history[len(history)-1]
	if last.Status != string(domain.OrderServed) || last.Note == "" {
		t.Errorf("last history row = %+v, want revert note", last)
	}

	f.tables.failRelease = false
	if err := f.svc.UpdateOrderStatus(context.Background(), o.ID, domain.OrderPaid, "cashier"); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestPaidIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := servedOrder(t, f)

	for i := 0; i < 2; i++ {
		if err := f.svc.UpdateOrderStatus(ctx, o.ID, domain.OrderPaid, "cashier"); err != nil {
			t.Fatalf("pay #%d: %v", i+1, err)
		}
	}
	if got := f.order(t, o.ID); got.Status != domain.OrderPaid {
		t.Errorf("status = %s", got.Status)
	}
	tb := f.table(t, "T5")
	if tb.Status != domain.TableAvailable || tb.CurrentOrder != nil {
		t.Errorf("table = %+v", tb)
	}

	tests := []domain.OrderStatus{domain.OrderCancelled, domain.OrderServed, domain.OrderConfirmed}
	for _, st := range tests {
		if err := f.svc.UpdateOrderStatus(ctx, o.ID, st, "waiter"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("Paid -> %s: got %v", st, err)
		}
	}
}

func TestUpdateOrderStatusErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.create(t, "T5", false, burgers(1))

	tests := []struct {
		name    string
		id      string
		status  domain.OrderStatus
		wantErr error
	}{
		{"unknown order", "WO-JKT-99999999", domain.OrderConfirmed, domain.ErrNotFound},
		{"unknown status", draft.ID, domain.OrderStatus("Eaten"), domain.ErrValidation},
		{"skip to paid", draft.ID, domain.OrderPaid, domain.ErrInvalidTransition},
		{"draft to served", draft.ID, domain.OrderServed, domain.ErrInvalidTransition},
		{"draft to draft", draft.ID, domain.OrderDraft, domain.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.svc.UpdateOrderStatus(ctx, tt.id, tt.status, "waiter"); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
	if got := f.order(t, draft.ID); got.Status != domain.OrderDraft {
		t.Errorf("status changed to %s", got.Status)
	}
}

func TestCancelReleasesTableAndCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, "T5", true, burgers(1), colas(1))
	if err := f.svc.UpdateItemStatus(ctx, o.Items[0].ID, domain.ItemCooking, "chef"); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.UpdateOrderStatus(ctx, o.ID, domain.OrderCancelled, "manager"); err != nil {
		t.Fatal(err)
	}
	got := f.order(t, o.ID)
	for _, it := range got.Items {
		if it.Status != domain.ItemCancelled {
			t.Errorf("item %s = %s", it.ID, it.Status)
		}
	}
	if got.TotalQty != 0 || !got.TotalAmount.IsZero() {
		t.Errorf("totals = %d %s", got.TotalQty, got.TotalAmount)
	}
	if tb := f.table(t, "T5"); tb.Status != domain.TableAvailable {
		t.Errorf("table = %+v", tb)
	}
	queue, err := f.svc.GetKitchenQueue(ctx, "JKT", "", "chef")
	if err != nil {
		t.Fatal(err)
	}
	if len(queue) != 0 {
		t.Errorf("cancelled items still queued: %+v", queue)
	}
}

func TestAddItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, "T5", true, burgers(1))
	ticketsBefore := len(f.pub.tickets)

	err := f.svc.AddItems(ctx, interfaces.AddItemsCommand{OrderID: o.ID, Actor: "waiter", Items: []interfaces.ItemInput{colas(3)}})
	if err != nil {
		t.Fatal(err)
	}
	got := f.order(t, o.ID)
	if len(got.Items) != 2 || got.TotalQty != 4 || !got.TotalAmount.Equal(decimal.RequireFromString("14.50")) {
		t.Errorf("order = %d items, qty %d, amount %s", len(got.Items), got.TotalQty, got.TotalAmount)
	}
	if len(f.pub.tickets) != ticketsBefore+1 || f.pub.tickets[len(f.pub.tickets)-1].Station != "Bar" {
		t.Errorf("expected one Bar ticket for the added items, got %+v", f.pub.tickets[ticketsBefore:])
	}

	tests := []struct {
		name    string
		cmd     interfaces.AddItemsCommand
		wantErr error
	}{
		{"empty batch", interfaces.AddItemsCommand{OrderID: o.ID, Actor: "waiter"}, domain.ErrValidation},
		{"bad line", interfaces.AddItemsCommand{OrderID: o.ID, Actor: "waiter", Items: []interfaces.ItemInput{colas(1), burgers(0)}}, domain.ErrValidation},
		{"unknown order", interfaces.AddItemsCommand{OrderID: "nope", Actor: "waiter", Items: []interfaces.ItemInput{colas(1)}}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.svc.AddItems(ctx, tt.cmd); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
	if got := f.order(t, o.ID); len(got.Items) != 2 {
		t.Errorf("failed batch changed items: %d", len(got.Items))
	}

	if err := f.svc.UpdateOrderStatus(ctx, o.ID, domain.OrderCancelled, "manager"); err != nil {
		t.Fatal(err)
	}
	err = f.svc.AddItems(ctx, interfaces.AddItemsCommand{OrderID: o.ID, Actor: "waiter", Items: []interfaces.ItemInput{colas(1)}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("add to cancelled order: %v", err)
	}
}

func TestMarkReadyItemsDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, "T5", true, burgers(1), colas(1))
	ready, cooking := o.Items[0].ID, o.Items[1].ID
	for _, st := range []domain.ItemStatus{domain.ItemCooking, domain.ItemReady} {
		if err := f.svc.UpdateItemStatus(ctx, ready, st, "chef"); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.svc.UpdateItemStatus(ctx, cooking, domain.ItemCooking, "chef"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		ids      []string
		allReady bool
		wantErr  error
	}{
		{"nothing requested", nil, false, domain.ErrValidation},
		{"not ready", []string{cooking}, false, domain.ErrInvalidTransition},
		{"unknown item", []string{"missing"}, false, domain.ErrNotFound},
		{"mixed batch is rejected whole", []string{ready, cooking}, false, domain.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.MarkReadyItemsDelivered(ctx, o.ID, tt.ids, tt.allReady, "waiter"); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	n, err := f.svc.MarkReadyItemsDelivered(ctx, o.ID, nil, true, "waiter")
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	got := f.order(t, o.ID)
	if got.Status != domain.OrderConfirmed {
		t.Errorf("partially delivered order is %s", got.Status)
	}
	p := got.Progress()
	if p.Delivered != 1 || p.Cooking != 1 {
		t.Errorf("progress = %+v", p)
	}

	if _, err := f.svc.MarkReadyItemsDelivered(ctx, o.ID, nil, true, "waiter"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("no ready items left: %v", err)
	}
}

func TestUpdateItemStatusErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, "T5", true, burgers(1))
	id := o.Items[0].ID

	tests := []struct {
		name    string
		itemID  string
		status  domain.ItemStatus
		wantErr error
	}{
		{"unknown item", "missing", domain.ItemCooking, domain.ErrNotFound},
		{"unknown status", id, domain.ItemStatus("Burnt"), domain.ErrValidation},
		{"skip cooking", id, domain.ItemReady, domain.ErrInvalidTransition},
		{"deliver new", id, domain.ItemDelivered, domain.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.svc.UpdateItemStatus(ctx, tt.itemID, tt.status, "chef"); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
	if got := f.order(t, o.ID); got.Items[0].Status != domain.ItemNew {
		t.Errorf("item status changed to %s", got.Items[0].Status)
	}
}

func TestConcurrentItemUpdatesOnOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inputs := make([]interfaces.ItemInput, 12)
	for i := range inputs {
		inputs[i] = burgers(1)
	}
	o := f.create(t, "T5", true, inputs...)

	var wg sync.WaitGroup
	for _, it := range o.Items {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for _, st := range []domain.ItemStatus{domain.ItemCooking, domain.ItemReady} {
				if err := f.svc.UpdateItemStatus(ctx, id, st, "chef"); err != nil {
					t.Errorf("item %s -> %s: %v", id, st, err)
				}
			}
		}(it.ID)
	}
	wg.Wait()

	got := f.order(t, o.ID)
	for _, it := range got.Items {
		if it.Status != domain.ItemReady {
			t.Errorf("item %s lost an update: %s", it.ID, it.Status)
		}
	}
	if got.TotalQty != 12 {
		t.Errorf("total qty = %d", got.TotalQty)
	}
	if n := f.svc.locks.size(); n != 0 {
		t.Errorf("%d order locks leaked", n)
	}
}

func TestGetKitchenQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "T5", true, burgers(3), colas(1))
	f.create(t, "T6", false, burgers(5))

	queue, err := f.svc.GetKitchenQueue(ctx, "JKT", "Grill", "chef")
	if err != nil {
		t.Fatal(err)
	}
	if len(queue) != 8 {
		t.Fatalf("got %d grill entries, want 8", len(queue))
	}
	for i, e := range queue {
		wantTable, wantUnit := "5", i+1
		if i >= 3 {
			wantTable, wantUnit = "6", i-2
		}
		if e.Unit != wantUnit || e.TableNumber != wantTable || e.TimeInQueue != 60 {
			t.Errorf("entry %d = %+v", i, e)
		}
	}

	if _, err := f.svc.GetKitchenQueue(ctx, "JKT", "", "stranger"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("stranger: %v", err)
	}
	if _, err := f.svc.GetKitchenQueue(ctx, "", "", "chef"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("no branch: %v", err)
	}
}

// interleavedOrders runs beforeSave once, after the caller has read the order
// and before its write reaches the store.
type interleavedOrders struct {
	interfaces.OrderRepository
	once       sync.Once
	beforeSave func()
}

func (r *interleavedOrders) Save(ctx context.Context, order *domain.Order) error {
	r.once.Do(r.beforeSave)
	return r.OrderRepository.Save(ctx, order)
}

// secondWriter builds another Service over the fixture's store, the way each
// process mode builds its own.
func secondWriter(f *fixture, orders interfaces.OrderRepository) *Service {
	clock := fixedClock{t0}
	log := logger.NewNop()
	return NewService(Params{
		Orders:    orders,
		Tables:    f.store.Tables(),
		Catalog:   f.store.Catalog(),
		Access:    f.store.Access(),
		Router:    routing.NewResolver(f.store.Stations(), routing.NewMemoryCache(clock), routing.DefaultTTL, log),
		TableSync: tablesync.NewSynchronizer(f.store.Tables(), f.store.Orders(), log),
		Queue:     kitchen.NewProjector(f.store.Orders(), f.store.Tables(), clock, log),
		Clock:     clock,
		Logger:    log,
	})
}

func TestStaleItemUpdateCannotReopenPaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := servedOrder(t, f)

	orders := &interleavedOrders{OrderRepository: f.store.Orders()}
	orders.beforeSave = func() {
		if err := f.svc.UpdateOrderStatus(ctx, o.ID, domain.OrderPaid, "cashier"); err != nil {
			t.Errorf("pay: %v", err)
		}
	}
	kitchenSvc := secondWriter(f, orders)

	err := kitchenSvc.UpdateItemStatus(ctx, o.Items[0].ID, domain.ItemCancelled, "chef")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("got %v, want validation error from the reloaded Paid order", err)
	}
	got := f.order(t, o.ID)
	if got.Status != domain.OrderPaid || got.Items[0].Status != domain.ItemDelivered {
		t.Errorf("order = %s, item = %s; want Paid with item untouched", got.Status, got.Items[0].Status)
	}
	if tb := f.table(t, "T5"); tb.Status != domain.TableAvailable || tb.CurrentOrder != nil {
		t.Errorf("table = %+v", tb)
	}
}

func TestStaleItemUpdateIsReplayed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.create(t, "T5", true, burgers(1), colas(1))
	burger, cola := o.Items[0].ID, o.Items[1].ID

	orders := &interleavedOrders{OrderRepository: f.store.Orders()}
	orders.beforeSave = func() {
		if err := f.svc.UpdateItemStatus(ctx, cola, domain.ItemCooking, "bartender"); err != nil {
			t.Errorf("cola: %v", err)
		}
	}
	kitchenSvc := secondWriter(f, orders)

	if err := kitchenSvc.UpdateItemStatus(ctx, burger, domain.ItemCooking, "chef"); err != nil {
		t.Fatal(err)
	}
	got := f.order(t, o.ID)
	for _, it := range got.Items {
		if it.Status != domain.ItemCooking {
			t.Errorf("item %s = %s, want Cooking", it.ItemCode, it.Status)
		}
	}
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.create(t, "T5", false, burgers(1))
	confirmed := f.create(t, "T6", true, burgers(1))

	if err := f.svc.DeleteOrder(ctx, confirmed.ID, "manager"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("delete confirmed: %v", err)
	}
	if err := f.svc.DeleteOrder(ctx, draft.ID, "manager"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.svc.GetOrder(ctx, draft.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted order still readable: %v", err)
	}

	if err := f.svc.UpdateOrderStatus(ctx, confirmed.ID, domain.OrderCancelled, "manager"); err != nil {
		t.Fatal(err)
	}
	f.tables.failRelease = true
	if err := f.svc.DeleteOrder(ctx, confirmed.ID, "manager"); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("delete with failing release: %v", err)
	}
	if _, _, err := f.svc.GetOrder(ctx, confirmed.ID); err != nil {
		t.Errorf("order not restored after failed delete: %v", err)
	}
}

func TestResolveVariant(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		code    string
		attrs   map[string]string
		want    string
		wantErr error
	}{
		{"by field name", "TEA", map[string]string{"temperature": "Hot"}, "TEA-HOT", nil},
		{"by attribute", "TEA", map[string]string{"Temperature": "Iced"}, "TEA-ICED", nil},
		{"no match", "TEA", map[string]string{"temperature": "Warm"}, "", domain.ErrNotFound},
		{"template needs attributes", "TEA", nil, "", domain.ErrValidation},
		{"plain item", "BURGER", nil, "BURGER", nil},
		{"plain item with attributes", "BURGER", map[string]string{"size": "L"}, "", domain.ErrNotFound},
		{"unknown", "PIZZA", nil, "", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.ResolveVariant(context.Background(), tt.code, tt.attrs)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatusUpdatesPublished(t *testing.T) {
	f := newFixture(t)
	o := servedOrder(t, f)

	var orderMoves []string
	for _, u := range f.pub.updates {
		if u.Entity == domain.EntityOrder && u.EntityID == o.ID {
			orderMoves = append(orderMoves, u.OldStatus+"->"+u.NewStatus)
		}
	}
	want := []string{"->Draft", "Draft->Confirmed", "Confirmed->Served"}
	if fmt.Sprint(orderMoves) != fmt.Sprint(want) {
		t.Errorf("order updates = %v, want %v", orderMoves, want)
	}
}
