package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

const publishTimeout = 5 * time.Second

type publisher struct {
	conn Connection
}

func NewPublisher(conn Connection) interfaces.MessagePublisher {
	return &publisher{conn: conn}
}

// PublishKitchenTicket sends one station's share of an order to kitchen.<branch>.<station>.
func (p *publisher) PublishKitchenTicket(ctx context.Context, msg interfaces.KitchenTicketMessage) error {
	return p.publish(ctx, OrdersExchange, "topic", KitchenRoutingKey(msg.Branch, msg.Station), msg, amqp.Persistent)
}

func (p *publisher) PublishStatusUpdate(ctx context.Context, msg interfaces.StatusUpdateMessage) error {
	return p.publish(ctx, NotificationsExchange, "fanout", "", msg, amqp.Transient)
}

func (p *publisher) publish(ctx context.Context, exchange, kind, key string, msg any, mode uint8) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, kind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		DeliveryMode: mode,
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", exchange, err)
	}
	return nil
}
