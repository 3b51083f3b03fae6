package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

const paymentActor = "payment-listener"

// PaymentHandler closes orders once their invoice is fully paid.
type PaymentHandler struct {
	service interfaces.OrderService
	logger  logger.Logger
}

func NewPaymentHandler(service interfaces.OrderService, logger logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

func (h *PaymentHandler) HandlePayment(ctx context.Context, body []byte) error {
	var msg interfaces.PaymentMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse payment message", "", nil, err)
		return err
	}
	if msg.OrderID == "" {
		return domain.NewValidationError(domain.EntityOrder, "", "payment %s carries no order id", msg.PaymentID)
	}

	details := map[string]interface{}{
		"payment_id":  msg.PaymentID,
		"event":       msg.Event,
		"outstanding": msg.OutstandingAmount,
	}

	switch msg.Event {
	case interfaces.PaymentCompleted:
		if msg.OutstandingAmount > 0 {
			h.logger.Info("payment_partial", fmt.Sprintf("Order %s still has an outstanding balance", msg.OrderID), msg.OrderID, details)
			return nil
		}
		actor := msg.Actor
		if actor == "" {
			actor = paymentActor
		}
		if err := h.service.UpdateOrderStatus(ctx, msg.OrderID, domain.OrderPaid, actor); err != nil {
			h.logger.Error("payment_apply_failed", "Failed to mark order paid", msg.OrderID, details, err)
			return err
		}
		h.logger.Info("payment_applied", fmt.Sprintf("Order %s marked paid", msg.OrderID), msg.OrderID, details)
		return nil

	case interfaces.PaymentCancelled:
		// Paid is terminal, so a cancelled payment never reopens the order.
		h.logger.Info("payment_cancel_ignored", fmt.Sprintf("Payment %s cancelled, order %s left unchanged", msg.PaymentID, msg.OrderID), msg.OrderID, details)
		return nil

	default:
		return domain.NewValidationError(domain.EntityOrder, msg.OrderID, "unknown payment event %q", msg.Event)
	}
}
