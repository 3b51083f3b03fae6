package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange and queue names shared by every service mode.
const (
	OrdersExchange        = "orders_topic"
	NotificationsExchange = "notifications_fanout"
	PaymentsExchange      = "payments_topic"
	KitchenStatusExchange = "kitchen_status_topic"

	PaymentsQueue   = "order_payments"
	ItemStatusQueue = "kitchen_item_status"
)

// topology describes one consumer's exchange, queue and binding.
// An empty Queue declares a server-named exclusive queue.
type topology struct {
	Exchange   string
	Kind       string
	Queue      string
	BindingKey string
	DeadLetter bool
	AutoAck    bool
}

var (
	paymentsTopology = topology{
		Exchange:   PaymentsExchange,
		Kind:       "topic",
		Queue:      PaymentsQueue,
		BindingKey: "payment.#",
		DeadLetter: true,
	}
	itemStatusTopology = topology{
		Exchange:   KitchenStatusExchange,
		Kind:       "topic",
		Queue:      ItemStatusQueue,
		BindingKey: "item.#",
		DeadLetter: true,
	}
	notificationsTopology = topology{
		Exchange: NotificationsExchange,
		Kind:     "fanout",
		AutoAck:  true,
	}
)

func (s topology) dlqExchange() string { return s.Queue + "_dlx" }
func (s topology) dlqQueue() string    { return s.Queue + "_dlq" }

// KitchenRoutingKey is the topic key a station's ticket is published under.
func KitchenRoutingKey(branch, station string) string {
	return fmt.Sprintf("kitchen.%s.%s", branch, station)
}

// declare sets up the exchange, the optional dead-letter pair and the bound
// queue. It returns the queue name to consume from.
func (s topology) declare(ch Channel) (string, error) {
	if err := ch.ExchangeDeclare(s.Exchange, s.Kind, true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("failed to declare exchange %s: %w", s.Exchange, err)
	}

	if s.Queue == "" {
		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return "", fmt.Errorf("failed to declare queue: %w", err)
		}
		if err := ch.QueueBind(q.Name, s.BindingKey, s.Exchange, false, nil); err != nil {
			return "", fmt.Errorf("failed to bind queue: %w", err)
		}
		return q.Name, nil
	}

	var args amqp.Table
	if s.DeadLetter {
		if err := ch.ExchangeDeclare(s.dlqExchange(), "fanout", true, false, false, false, nil); err != nil {
			return "", fmt.Errorf("failed to declare DLQ exchange: %w", err)
		}
		if _, err := ch.QueueDeclare(s.dlqQueue(), true, false, false, false, nil); err != nil {
			return "", fmt.Errorf("failed to declare DLQ: %w", err)
		}
		if err := ch.QueueBind(s.dlqQueue(), "", s.dlqExchange(), false, nil); err != nil {
			return "", fmt.Errorf("failed to bind DLQ: %w", err)
		}
		args = amqp.Table{"x-dead-letter-exchange": s.dlqExchange()}
	}

	q, err := ch.QueueDeclare(s.Queue, true, false, false, false, args)
	if err != nil {
		return "", fmt.Errorf("failed to declare queue %s: %w", s.Queue, err)
	}
	if err := ch.QueueBind(q.Name, s.BindingKey, s.Exchange, false, nil); err != nil {
		return "", fmt.Errorf("failed to bind queue %s: %w", s.Queue, err)
	}
	return q.Name, nil
}
