package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aq2208/kiosk-api/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange    = "kiosk.events"
	OutcomesQueue     = "kiosk.outcomes.q"
	RoutingCompleted  = "kiosk.order.completed"
	RoutingFailed     = "kiosk.order.failed"
	outcomeBindingKey = "kiosk.order.*"

	CommandsExchange = "kiosk.commands"
)

// PublishChannel is the slice of *amqp.Channel used for topology and publishing.
type PublishChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitProducer implements usecase.OutcomePublisher
type RabbitProducer struct {
	ch PublishChannel
}

// NewRabbitProducer sets up the exchange, queue, and binding once at startup.
func NewRabbitProducer(ch PublishChannel) (*RabbitProducer, error) {
	if err := declareTopic(ch, EventsExchange); err != nil {
		return nil, err
	}
	if err := declareBoundQueue(ch, OutcomesQueue, EventsExchange, outcomeBindingKey); err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &RabbitProducer{ch: ch}, nil
}

// DeclareCommandQueue creates the per-kiosk command queue. It receives commands
// addressed to this kiosk and broadcasts addressed to all kiosks.
func DeclareCommandQueue(ch PublishChannel, queueName, kioskID string) error {
	if err := declareTopic(ch, CommandsExchange); err != nil {
		return err
	}
	for _, key := range []string{"kiosk.command." + kioskID, "kiosk.command.all"} {
		if err := declareBoundQueue(ch, queueName, CommandsExchange, key); err != nil {
			return err
		}
	}
	return nil
}

func declareTopic(ch PublishChannel, exchange string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

func declareBoundQueue(ch PublishChannel, queueName, exchange, key string) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", queueName, exchange, err)
	}
	return nil
}

// PublishOutcome sends the terminal order state to the events exchange.
func (p *RabbitProducer) PublishOutcome(ctx context.Context, msg usecase.OrderOutcomeMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := RoutingFailed
	if msg.Status == "COMPLETED" {
		key = RoutingCompleted
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		MessageId:    msg.TransactionID,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, EventsExchange, key, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

var _ usecase.OutcomePublisher = (*RabbitProducer)(nil)
