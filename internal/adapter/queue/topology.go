package queue

import (
	"fmt"

	"github.com/aq2208/storefront-api/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	OrderCreatedQueue       = "order.created.q"
	OrderStatusChangedQueue = "order.status_changed.q"
)

// bindings maps each durable queue to the routing key it receives.
var bindings = map[string]string{
	OrderCreatedQueue:       usecase.ChannelOrderCreated,
	OrderStatusChangedQueue: usecase.ChannelOrderStatusChanged,
}

// Declare sets up the exchange, queues and bindings once at startup.
func Declare(ch *amqp.Channel, exchange string) error {
	// topic exchange, durable
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for queue, key := range bindings {
		q, err := ch.QueueDeclare(
			queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", queue, err)
		}
	}
	return nil
}
