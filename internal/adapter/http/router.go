package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
)

func NewRouter(orders *OrderHandler, kitchen *KitchenHandler, tracking *TrackingHandler, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoveryMiddleware(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", orders.CreateOrder)
		r.Get("/{id}", orders.GetOrder)
		r.Delete("/{id}", orders.DeleteOrder)
		r.Post("/{id}/items", orders.AddItems)
		r.Patch("/{id}/status", orders.UpdateOrderStatus)
		r.Post("/{id}/deliver", orders.DeliverReady)
		r.Get("/{id}/history", tracking.OrderHistory)
	})
	r.Patch("/items/{id}/status", orders.UpdateItemStatus)
	r.Post("/variants/resolve", orders.ResolveVariant)

	r.Get("/tables", tracking.Tables)
	r.Get("/kitchen/queue", kitchen.Queue)
	r.Get("/kitchen/stations", kitchen.Stations)

	return r
}
