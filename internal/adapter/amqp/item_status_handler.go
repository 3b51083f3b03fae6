package amqp

import (
	"context"
	"encoding/json"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

// ItemStatusHandler applies status changes sent by kitchen displays.
type ItemStatusHandler struct {
	service interfaces.OrderService
	logger  logger.Logger
}

func NewItemStatusHandler(service interfaces.OrderService, logger logger.Logger) *ItemStatusHandler {
	return &ItemStatusHandler{
		service: service,
		logger:  logger,
	}
}

func (h *ItemStatusHandler) HandleItemStatus(ctx context.Context, body []byte) error {
	var msg interfaces.ItemStatusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse item status message", "", nil, err)
		return err
	}

	err := h.service.UpdateItemStatus(ctx, msg.ItemID, domain.ItemStatus(msg.Status), msg.Actor)
	if err != nil {
		h.logger.Error("item_status_rejected", "Kitchen item status update rejected", msg.ItemID, map[string]interface{}{
			"item_id": msg.ItemID,
			"status":  msg.Status,
			"actor":   msg.Actor,
		}, err)
		return err
	}
	return nil
}
