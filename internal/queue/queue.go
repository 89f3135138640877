// Package queue publishes grading outcomes to RabbitMQ for analytics
// consumers. The broker is optional: grading never waits on it.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AttemptQueueName carries one event per graded submission.
const AttemptQueueName = "teachai.attempts"

// AttemptEvent is published after every graded submission.
type AttemptEvent struct {
	ID        uuid.UUID     `json:"id"`
	AttemptID string        `json:"attempt_id"`
	LessonID  string        `json:"lesson_id"`
	CellID    string        `json:"cell_id"`
	Verdict   string        `json:"verdict"` // correct, incorrect, error
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Connection wraps one AMQP connection plus channel and reconnects after
// broker restarts.
type Connection struct {
	url        string
	conn       *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	closed     bool
	reconnects int
}

// NewConnection dials the broker and declares the attempt queue.
func NewConnection(url string) (*Connection, error) {
	c := &Connection{url: url}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	c.conn, err = amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.declareQueues(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	go c.watchClose()

	slog.Info("connected to rabbitmq", "url", sanitizeURL(c.url))
	return nil
}

func (c *Connection) declareQueues() error {
	// Durable with a day of TTL: an analytics consumer may lag behind or be
	// down entirely, but stale events have no value after that.
	_, err := c.channel.QueueDeclare(
		AttemptQueueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-message-ttl": int32(86400000)},
	)
	if err != nil {
		return fmt.Errorf("declare attempt queue: %w", err)
	}
	return nil
}

// watchClose redials with exponential backoff when the broker drops the
// connection. Gives up after ten attempts; publishing then fails until the
// process restarts.
func (c *Connection) watchClose() {
	closeErr := <-c.conn.NotifyClose(make(chan *amqp.Error, 1))
	if closeErr == nil {
		return // clean shutdown
	}

	c.mu.Lock()
	wasClosed := c.closed
	c.mu.Unlock()
	if wasClosed {
		return
	}

	slog.Warn("rabbitmq connection lost, reconnecting",
		"error", closeErr, "prior_reconnects", c.reconnects)

	for attempt := 1; attempt <= 10; attempt++ {
		c.reconnects++
		backoff := time.Duration(1<<(attempt-1)) * time.Second
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
		time.Sleep(backoff)

		if err := c.connect(); err != nil {
			slog.Error("rabbitmq reconnect failed", "error", err, "attempt", attempt)
			continue
		}

		slog.Info("reconnected to rabbitmq", "attempts", attempt)
		return
	}

	slog.Error("giving up on rabbitmq after 10 reconnect attempts")
}

// Channel returns the current channel.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Close shuts the connection down and stops reconnection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected reports whether the underlying connection is open.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// PublishJSON publishes data as a persistent JSON message on queue.
func (c *Connection) PublishJSON(ctx context.Context, queue string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	return ch.PublishWithContext(
		ctx,
		"",    // default exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// sanitizeURL redacts the password so broker URLs are safe to log.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
