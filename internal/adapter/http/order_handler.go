package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

type OrderHandler struct {
	service interfaces.OrderService
	logger  logger.Logger
}

func NewOrderHandler(service interfaces.OrderService, logger logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, h.logger, "order_creation_failed", err)
		return
	}
	var req CreateOrderRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, "order_creation_failed", err)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), interfaces.CreateOrderCommand{
		TableID: req.TableID,
		Actor:   actor,
		Items:   toItemInputs(req.Items),
		Submit:  req.Submit,
	})
	if err != nil {
		respondError(w, r, h.logger, "order_creation_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order, nil))
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, progress, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, "order_get_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, &progress))
}

func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, h.logger, "order_add_items_failed", err)
		return
	}
	var req AddItemsRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, "order_add_items_failed", err)
		return
	}

	orderID := chi.URLParam(r, "id")
	err = h.service.AddItems(r.Context(), interfaces.AddItemsCommand{
		OrderID: orderID,
		Actor:   actor,
		Items:   toItemInputs(req.Items),
	})
	if err != nil {
		respondError(w, r, h.logger, "order_add_items_failed", err)
		return
	}
	h.writeOrder(w, r, orderID, http.StatusOK)
}

func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, h.logger, "order_status_update_failed", err)
		return
	}
	var req StatusRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, "order_status_update_failed", err)
		return
	}

	orderID := chi.URLParam(r, "id")
	if err := h.service.UpdateOrderStatus(r.Context(), orderID, domain.OrderStatus(req.Status), actor); err != nil {
		respondError(w, r, h.logger, "order_status_update_failed", err)
		return
	}
	h.writeOrder(w, r, orderID, http.StatusOK)
}

func (h *OrderHandler) DeliverReady(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, h.logger, "order_deliver_failed", err)
		return
	}
	var req DeliverRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, "order_deliver_failed", err)
		return
	}

	n, err := h.service.MarkReadyItemsDelivered(r.Context(), chi.URLParam(r, "id"), req.ItemIDs, req.AllReady, actor)
	if err != nil {
		respondError(w, r, h.logger, "order_deliver_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"delivered": n})
}

func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, h.logger, "order_delete_failed", err)
		return
	}
	if err := h.service.DeleteOrder(r.Context(), chi.URLParam(r, "id"), actor); err != nil {
		respondError(w, r, h.logger, "order_delete_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, h.logger, "item_status_update_failed", err)
		return
	}
	var req StatusRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, "item_status_update_failed", err)
		return
	}

	itemID := chi.URLParam(r, "id")
	if err := h.service.UpdateItemStatus(r.Context(), itemID, domain.ItemStatus(req.Status), actor); err != nil {
		respondError(w, r, h.logger, "item_status_update_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"item_id": itemID, "status": req.Status})
}

func (h *OrderHandler) ResolveVariant(w http.ResponseWriter, r *http.Request) {
	var req ResolveVariantRequest
	if err := readJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, "variant_resolve_failed", err)
		return
	}
	code, err := h.service.ResolveVariant(r.Context(), req.TemplateCode, req.Attributes)
	if err != nil {
		respondError(w, r, h.logger, "variant_resolve_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"item_code": code})
}

func (h *OrderHandler) writeOrder(w http.ResponseWriter, r *http.Request, orderID string, status int) {
	order, progress, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		respondError(w, r, h.logger, "order_get_failed", err)
		return
	}
	writeJSON(w, status, toOrderResponse(order, &progress))
}
