package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer publishes attempt events.
type Producer struct {
	conn *Connection
}

// NewProducer creates a producer over an established connection.
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishAttempt publishes event on the attempt queue, filling in the event
// ID and timestamp when the caller left them zero.
func (p *Producer) PublishAttempt(ctx context.Context, event *AttemptEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, AttemptQueueName, event); err != nil {
		return fmt.Errorf("publish attempt event: %w", err)
	}

	slog.Debug("attempt event published",
		"event_id", event.ID,
		"attempt_id", event.AttemptID,
		"lesson_id", event.LessonID,
		"verdict", event.Verdict,
	)

	return nil
}
