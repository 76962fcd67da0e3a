package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TaskQueue is the durable queue task messages travel on.
const TaskQueue = "weatherbench.tasks"

// Broker publishes tasks and can revoke everything still queued.
type Broker interface {
	Publish(ctx context.Context, t Task) error
	// Purge drops all not-yet-delivered tasks. Used when a run is
	// abandoned so orphaned units are not left for future consumers.
	Purge(ctx context.Context) error
}

// AMQPBroker is the RabbitMQ-backed Broker.
type AMQPBroker struct {
	channel *amqp.Channel
}

// NewAMQPBroker opens a channel and declares the durable task queue.
func NewAMQPBroker(conn *amqp.Connection) (*AMQPBroker, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("queue: open channel: %w", err)
	}
	if _, err := declareTaskQueue(ch); err != nil {
		return nil, err
	}
	return &AMQPBroker{channel: ch}, nil
}

// Publish implements Broker with persistent delivery.
func (b *AMQPBroker) Publish(ctx context.Context, t Task) error {
	body, err := t.Encode()
	if err != nil {
		return err
	}
	return b.channel.PublishWithContext(ctx,
		"",
		TaskQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Purge implements Broker.
func (b *AMQPBroker) Purge(_ context.Context) error {
	_, err := b.channel.QueuePurge(TaskQueue, false)
	return err
}

// Close releases the channel.
func (b *AMQPBroker) Close() error { return b.channel.Close() }

func declareTaskQueue(ch *amqp.Channel) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		TaskQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("queue: declare %s: %w", TaskQueue, err)
	}
	return q, nil
}
