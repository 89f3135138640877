package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventHandler processes one attempt event. A returned error requeues the
// event once; the second failure discards it.
type EventHandler func(ctx context.Context, event *AttemptEvent) error

// Consumer drains the attempt queue with a small worker pool. The daemon
// never runs one; consumers are separate analytics processes.
type Consumer struct {
	conn     *Connection
	handler  EventHandler
	workers  int
	prefetch int
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// ConsumerConfig sizes the worker pool.
type ConsumerConfig struct {
	Workers  int
	Prefetch int // unacked messages per worker
}

// DefaultConsumerConfig returns defaults sized for light analytics traffic.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{Workers: 2, Prefetch: 1}
}

// NewConsumer creates a consumer; non-positive config values are clamped to
// the defaults.
func NewConsumer(conn *Connection, handler EventHandler, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		handler:  handler,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
	}
}

// Start registers the consumer on the attempt queue and launches the
// workers. Returns once consumption is set up.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	ch := c.conn.Channel()
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	// Manual ack: an event is only gone once its handler succeeded.
	msgs, err := ch.Consume(AttemptQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume attempt queue: %w", err)
	}

	slog.Info("attempt consumer starting", "workers", c.workers, "prefetch", c.prefetch)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}

	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				slog.Info("delivery channel closed", "worker_id", id)
				return
			}
			c.handle(ctx, id, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, id int, msg amqp.Delivery) {
	var event AttemptEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("malformed attempt event", "worker_id", id, "error", err)
		// No requeue: a malformed body never becomes parseable.
		_ = msg.Reject(false)
		return
	}

	if err := c.handler(ctx, &event); err != nil {
		slog.Error("attempt event handling failed",
			"worker_id", id, "event_id", event.ID, "error", err)
		_ = msg.Reject(!msg.Redelivered)
		return
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("ack failed", "worker_id", id, "event_id", event.ID, "error", err)
	}
}

// Stop cancels the workers and waits for in-flight handlers to finish.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	slog.Info("attempt consumer stopped")
}
