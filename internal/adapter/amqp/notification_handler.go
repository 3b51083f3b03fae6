package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

// NotificationHandler prints every status change seen on the fanout exchange.
type NotificationHandler struct {
	logger logger.Logger
	out    io.Writer
}

func NewNotificationHandler(logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		logger: logger,
		out:    os.Stdout,
	}
}

func (h *NotificationHandler) HandleNotification(ctx context.Context, body []byte) error {
	var msg interfaces.StatusUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse notification", "", nil, err)
		return err
	}

	h.logger.Debug("notification_received", fmt.Sprintf("Received status update for %s %s", msg.Entity, msg.EntityID),
		msg.OrderID, map[string]interface{}{
			"entity":     msg.Entity,
			"entity_id":  msg.EntityID,
			"order_id":   msg.OrderID,
			"new_status": msg.NewStatus,
		})

	from := msg.OldStatus
	if from == "" {
		from = "-"
	}
	fmt.Fprintf(h.out, "Notification for order %s: %s %s changed from '%s' to '%s' by %s\n",
		msg.OrderID, msg.Entity, msg.EntityID, from, msg.NewStatus, msg.ChangedBy)
	return nil
}
