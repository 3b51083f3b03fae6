package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/waiter-orders/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter-orders/internal/domain"
	"github.com/YelzhanWeb/waiter-orders/internal/interfaces"
)

const reconnectDelay = 5 * time.Second

type consumer struct {
	conn     Connection
	prefetch int
	logger   logger.Logger
}

func NewConsumer(conn Connection, prefetch int, log logger.Logger) interfaces.MessageConsumer {
	return &consumer{conn: conn, prefetch: prefetch, logger: log}
}

func (c *consumer) ConsumePayments(ctx context.Context, handler interfaces.MessageHandler) error {
	return c.run(ctx, paymentsTopology, handler)
}

func (c *consumer) ConsumeItemStatus(ctx context.Context, handler interfaces.MessageHandler) error {
	return c.run(ctx, itemStatusTopology, handler)
}

func (c *consumer) ConsumeNotifications(ctx context.Context, handler interfaces.MessageHandler) error {
	return c.run(ctx, notificationsTopology, handler)
}

// run keeps a consumer alive across channel and connection drops until ctx ends.
func (c *consumer) run(ctx context.Context, tp topology, handler interfaces.MessageHandler) error {
	for {
		err := c.consume(ctx, tp, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errConnectionClosed) {
			return err
		}

		c.logger.Error("consumer_disconnected", fmt.Sprintf("Consumer for %s disconnected, reconnecting in %v", tp.Exchange, reconnectDelay), "", map[string]interface{}{
			"exchange": tp.Exchange,
			"queue":    tp.Queue,
		}, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
		if err := c.conn.Reconnect(ctx); err != nil {
			if errors.Is(err, errConnectionClosed) {
				return err
			}
			c.logger.Error("rabbitmq_reconnect_failed", "Failed to reconnect to RabbitMQ", "", nil, err)
		}
	}
}

func (c *consumer) consume(ctx context.Context, tp topology, handler interfaces.MessageHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if !tp.AutoAck {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	queue, err := tp.declare(ch)
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(queue, "", tp.AutoAck, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}

			err := handler(ctx, msg.Body)
			if tp.AutoAck {
				continue
			}
			if err := settle(msg, err); err != nil {
				c.logger.Error("message_ack_failed", "Failed to settle delivery", msg.MessageId, nil, err)
			}
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle acks handled messages. Messages that failed because a backing store
// was unavailable, or that kept losing version races, go back on the queue;
// anything else is dead-lettered.
func settle(d acknowledger, handlerErr error) error {
	switch {
	case handlerErr == nil:
		return d.Ack(false)
	case errors.Is(handlerErr, domain.ErrUnavailable), errors.Is(handlerErr, domain.ErrStaleWrite):
		return d.Nack(false, true)
	default:
		return d.Nack(false, false)
	}
}
