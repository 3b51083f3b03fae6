package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/adapter/memory"
	"github.com/YelzhanWeb/waiter-orders/internal/app/kitchen"
	"github.com/YelzhanWeb/waiter-orders/internal/app/order"
	"github.com/YelzhanWeb/waiter-orders/internal/app/routing"
	"github.com/YelzhanWeb/waiter-orders/internal/app/tablesync"
	"github.com/YelzhanWeb/waiter-orders/internal/app/tracking"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	store.AddTable(&domain.Table{ID: "T5", Number: "5", Branch: "JKT", Active: true, Status: domain.TableAvailable})
	store.AddStation(&domain.KitchenStation{ID: "S1", Name: "Grill", Branch: "JKT", Active: true, ItemGroups: []domain.StationItemGroup{{ItemGroup: "Mains"}}})
	store.AddMenuItem(&domain.MenuItem{Code: "BURGER", Name: "Burger", ItemGroup: "Mains", Rate: decimal.RequireFromString("8.50")})
	store.AddMenuItem(&domain.MenuItem{Code: "TEA", Name: "Tea", ItemGroup: "Drinks", HasVariants: true})
	store.AddMenuItem(&domain.MenuItem{Code: "TEA-HOT", Name: "Hot Tea", ItemGroup: "Drinks", VariantOf: "TEA", Rate: decimal.RequireFromString("1.50"),
		Attributes: []domain.VariantAttribute{{Attribute: "Temperature", Value: "Hot"}}})
	store.GrantAccess("waiter", "JKT")

	log := logger.NewNop()
	clock := fixedClock{t0}
	var seq atomic.Int64
	svc := order.NewService(order.Params{
		Orders:    store.Orders(),
		Tables:    store.Tables(),
		Catalog:   store.Catalog(),
		Access:    store.Access(),
		Router:    routing.NewResolver(store.Stations(), routing.NewMemoryCache(clock), routing.DefaultTTL, log),
		TableSync: tablesync.NewSynchronizer(store.Tables(), store.Orders(), log),
		Queue:     kitchen.NewProjector(store.Orders(), store.Tables(), fixedClock{t0.Add(90 * time.Second)}, log),
		Clock:     clock,
		Logger:    log,
		NewID:     func() string { return fmt.Sprintf("item-%d", seq.Add(1)) },
	})
	track := tracking.NewService(store.Orders(), store.Tables(), store.Stations(), log)

	srv := httptest.NewServer(NewRouter(
		NewOrderHandler(svc, log),
		NewKitchenHandler(svc, track, log),
		NewTrackingHandler(track, log),
		log,
	))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, actor, body string) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, buf.Bytes()
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/orders", "waiter",
		`{"table_id":"T5","submit":true,"items":[{"item_code":"BURGER","qty":2,"notes":"no onion"},{"item_code":"TEA","qty":1,"attributes":{"Temperature":"Hot"}}]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, body)
	}
	var created OrderResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}
	if created.Status != "Confirmed" || created.TotalQty != 3 || !created.TotalAmount.Equal(decimal.RequireFromString("18.50")) {
		t.Fatalf("created = %+v", created)
	}
	if created.Items[1].ItemCode != "TEA-HOT" || created.Items[1].Station != domain.UnassignedStation {
		t.Errorf("variant item = %+v", created.Items[1])
	}

	resp, body = do(t, srv, http.MethodGet, "/kitchen/queue?branch=JKT&station=Grill", "waiter", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("queue: %d %s", resp.StatusCode, body)
	}
	var queue []domain.QueueEntry
	if err := json.Unmarshal(body, &queue); err != nil {
		t.Fatal(err)
	}
	if len(queue) != 2 || queue[0].TableNumber != "5" || queue[0].TimeInQueue != 90 {
		t.Fatalf("queue = %+v", queue)
	}

	resp, body = do(t, srv, http.MethodGet, "/tables?branch=JKT", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), created.ID) {
		t.Fatalf("tables: %d %s", resp.StatusCode, body)
	}

	burgerID := created.Items[0].ID
	for _, status := range []string{"Cooking", "Ready"} {
		resp, body = do(t, srv, http.MethodPatch, "/items/"+burgerID+"/status", "chef", `{"status":"`+status+`"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("item %s: %d %s", status, resp.StatusCode, body)
		}
	}

	resp, body = do(t, srv, http.MethodPost, "/orders/"+created.ID+"/deliver", "waiter", `{"all_ready":true}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"delivered":1`) {
		t.Fatalf("deliver: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, srv, http.MethodGet, "/orders/"+created.ID+"/history", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: %d %s", resp.StatusCode, body)
	}
	var history []StatusLogResponse
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatal(err)
	}
	if len(history) < 5 {
		t.Errorf("history = %+v", history)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		actor      string
		body       string
		wantStatus int
		wantKind   string
	}{
		{"missing actor", http.MethodPost, "/orders", "", `{"table_id":"T5","items":[{"item_code":"BURGER","qty":1}]}`, http.StatusBadRequest, "validation error"},
		{"unknown field", http.MethodPost, "/orders", "waiter", `{"table":"T5"}`, http.StatusBadRequest, "validation error"},
		{"forbidden branch", http.MethodPost, "/orders", "stranger", `{"table_id":"T5","items":[{"item_code":"BURGER","qty":1}]}`, http.StatusForbidden, "forbidden"},
		{"unknown table", http.MethodPost, "/orders", "waiter", `{"table_id":"T99","items":[{"item_code":"BURGER","qty":1}]}`, http.StatusNotFound, "not found"},
		{"missing order", http.MethodGet, "/orders/WO-JKT-99999999", "", "", http.StatusNotFound, "not found"},
		{"bad status", http.MethodPatch, "/items/nope/status", "chef", `{"status":"Burnt"}`, http.StatusBadRequest, "validation error"},
		{"queue without branch", http.MethodGet, "/kitchen/queue", "waiter", "", http.StatusBadRequest, "validation error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, tt.method, tt.path, tt.actor, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantStatus, body)
			}
			var er ErrorResponse
			if err := json.Unmarshal(body, &er); err != nil {
				t.Fatal(err)
			}
			if er.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", er.Kind, tt.wantKind)
			}
		})
	}
}

func TestStatusConflictAndPaidIdempotent(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/orders", "waiter", `{"table_id":"T5","items":[{"item_code":"BURGER","qty":1}]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, body)
	}
	var o OrderResponse
	if err := json.Unmarshal(body, &o); err != nil {
		t.Fatal(err)
	}

	resp, body = do(t, srv, http.MethodPatch, "/orders/"+o.ID+"/status", "waiter", `{"status":"Paid"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("draft->paid: %d %s", resp.StatusCode, body)
	}

	resp, _ = do(t, srv, http.MethodDelete, "/orders/"+o.ID, "waiter", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete draft: %d", resp.StatusCode)
	}
}

func TestResolveVariantEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodPost, "/variants/resolve", "", `{"template_code":"TEA","attributes":{"Temperature":"Hot"}}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "TEA-HOT") {
		t.Fatalf("resolve: %d %s", resp.StatusCode, body)
	}
	resp, _ = do(t, srv, http.MethodPost, "/variants/resolve", "", `{"template_code":"TEA","attributes":{"Temperature":"Lukewarm"}}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown variant: %d", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("x", "", "bad"), http.StatusBadRequest},
		{domain.NewForbiddenError("x", "", "no"), http.StatusForbidden},
		{domain.NewNotFoundError("x", "1"), http.StatusNotFound},
		{domain.NewConflictError("x", "1", "held"), http.StatusConflict},
		{domain.NewTransitionError("x", "1", domain.OrderPaid, domain.OrderDraft), http.StatusConflict},
		{fmt.Errorf("db: %w", domain.ErrUnavailable), http.StatusServiceUnavailable},
		{&domain.Error{Kind: domain.ErrRoutingUnresolved, Entity: "x"}, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
