package http

import (
	"net/http"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

type KitchenHandler struct {
	orders   interfaces.OrderService
	tracking interfaces.TrackingService
	logger   logger.Logger
}

func NewKitchenHandler(orders interfaces.OrderService, tracking interfaces.TrackingService, logger logger.Logger) *KitchenHandler {
	return &KitchenHandler{
		orders:   orders,
		tracking: tracking,
		logger:   logger,
	}
}

// Queue serves GET /kitchen/queue?branch=&station=
func (h *KitchenHandler) Queue(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		respondError(w, r, h.logger, "kitchen_queue_failed", err)
		return
	}
	branch, err := queryRequired(r, "branch")
	if err != nil {
		respondError(w, r, h.logger, "kitchen_queue_failed", err)
		return
	}

	entries, err := h.orders.GetKitchenQueue(r.Context(), branch, r.URL.Query().Get("station"), actor)
	if err != nil {
		respondError(w, r, h.logger, "kitchen_queue_failed", err)
		return
	}
	if entries == nil {
		entries = []domain.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *KitchenHandler) Stations(w http.ResponseWriter, r *http.Request) {
	branch, err := queryRequired(r, "branch")
	if err != nil {
		respondError(w, r, h.logger, "kitchen_stations_failed", err)
		return
	}
	stations, err := h.tracking.ListStations(r.Context(), branch)
	if err != nil {
		respondError(w, r, h.logger, "kitchen_stations_failed", err)
		return
	}

	resp := make([]StationResponse, 0, len(stations))
	for _, s := range stations {
		groups := []string{}
		for _, g := range s.ItemGroups {
			if !g.Disabled {
				groups = append(groups, g.ItemGroup)
			}
		}
		resp = append(resp, StationResponse{ID: s.ID, Name: s.Name, ItemGroups: groups})
	}
	writeJSON(w, http.StatusOK, resp)
}
