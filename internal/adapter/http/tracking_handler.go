package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

type TrackingHandler struct {
	service interfaces.TrackingService
	logger  logger.Logger
}

func NewTrackingHandler(service interfaces.TrackingService, logger logger.Logger) *TrackingHandler {
	return &TrackingHandler{
		service: service,
		logger:  logger,
	}
}

func (h *TrackingHandler) Tables(w http.ResponseWriter, r *http.Request) {
	branch, err := queryRequired(r, "branch")
	if err != nil {
		respondError(w, r, h.logger, "table_overview_failed", err)
		return
	}
	rows, err := h.service.TableOverview(r.Context(), branch)
	if err != nil {
		respondError(w, r, h.logger, "table_overview_failed", err)
		return
	}

	resp := make([]TableResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, TableResponse{
			TableID:  row.TableID,
			Number:   row.Number,
			Status:   string(row.Status),
			OrderID:  row.OrderID,
			Progress: row.Summary,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TrackingHandler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.OrderHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, "order_history_failed", err)
		return
	}

	resp := make([]StatusLogResponse, 0, len(history))
	for _, l := range history {
		resp = append(resp, StatusLogResponse{
			Entity:    l.Entity,
			EntityID:  l.EntityID,
			Status:    l.Status,
			ChangedBy: l.ChangedBy,
			ChangedAt: l.ChangedAt,
			Note:      l.Note,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
