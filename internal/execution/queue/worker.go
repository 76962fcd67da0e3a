package queue

import (
	"context"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"weatherbench/internal/analytics"
	"weatherbench/internal/readings"
)

// Worker is one queue consumer. It holds a read-only dataset loaded once
// at start; each task only names the partition to process. Prefetch is 1
// and a delivery is acknowledged only after its fragments are durably
// recorded, so an un-acked task is redelivered to another consumer.
type Worker struct {
	data   *readings.Dataset
	engine *analytics.Engine
	store  FragmentStore
	logger *log.Logger
}

// NewWorker wires a worker.
func NewWorker(data *readings.Dataset, engine *analytics.Engine, store FragmentStore, logger *log.Logger) (*Worker, error) {
	if data == nil || engine == nil || store == nil {
		return nil, fmt.Errorf("queue: nil worker dependency")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{data: data, engine: engine, store: store, logger: logger}, nil
}

// Consume opens a prefetch-1 subscription on the task queue and processes
// deliveries until the context is canceled or the channel closes.
func (w *Worker) Consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("queue: open channel: %w", err)
	}
	defer ch.Close()

	if _, err := declareTaskQueue(ch); err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("queue: set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(
		TaskQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("queue: consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Println("queue: worker shutting down")
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				w.logger.Println("queue: delivery channel closed")
				return nil
			}
			w.handleDelivery(ctx, msg)
		}
	}
}

func (w *Worker) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	task, err := DecodeTask(msg.Body)
	if err != nil {
		// Undecodable messages are dropped, not requeued: they would
		// fail identically on every redelivery.
		w.logger.Printf("queue: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	if err := w.Process(ctx, task); err != nil {
		w.logger.Printf("queue: task %s/%s: %v", task.RunID, task.UnitID(), err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

// Process computes and records one task's fragments. A key that resolves
// to no partition records an empty fragment set so the dispatcher's group
// count still completes.
func (w *Worker) Process(ctx context.Context, task Task) error {
	var (
		frags analytics.Fragments
		err   error
	)
	switch task.Kind {
	case KindStation:
		if p, ok := w.data.Station(task.Key); ok {
			frags, err = w.engine.StationMetrics(p)
		}
	case KindRegion:
		if p, ok := w.data.Region(task.Key); ok {
			frags, err = w.engine.RegionMetrics(p)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrBadTask, task.Kind)
	}
	if err != nil {
		return err
	}
	return w.store.Put(ctx, task.RunID, task.UnitID(), frags)
}
